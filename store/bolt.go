package store

import (
	"bytes"
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("records")

// BoltStore persists records to a BoltDB file on disk.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) a BoltDB database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Create implements Store.
func (b *BoltStore) Create(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt.Get([]byte(key)) != nil {
			return ErrAlreadyExists
		}
		return bkt.Put([]byte(key), raw)
	})
}

// Get implements Store.
func (b *BoltStore) Get(key string, target any) error {
	return b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, target)
	})
}

// Update implements Store.
func (b *BoltStore) Update(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return bkt.Put([]byte(key), raw)
	})
}

// Delete implements Store.
func (b *BoltStore) Delete(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return bkt.Delete([]byte(key))
	})
}

// List implements Store. Results come back in key order thanks to BoltDB's
// sorted cursors.
func (b *BoltStore) List(prefix string, factory func() any) ([]any, error) {
	var out []any
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			obj := factory()
			if err := json.Unmarshal(v, obj); err != nil {
				return err
			}
			out = append(out, obj)
		}
		return nil
	})
	return out, err
}

// Close implements Store.
func (b *BoltStore) Close() error { return b.db.Close() }
