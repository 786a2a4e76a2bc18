package store

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a process-local Store. Values are kept JSON-encoded so the
// round-trip behavior matches BoltStore exactly.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// Create implements Store.
func (m *MemoryStore) Create(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return ErrAlreadyExists
	}
	m.data[key] = raw
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(key string, target any) error {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, target)
}

// Update implements Store.
func (m *MemoryStore) Update(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; !exists {
		return ErrNotFound
	}
	m.data[key] = raw
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; !exists {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(prefix string, factory func() any) ([]any, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	raws := make([][]byte, 0, len(keys))
	for _, k := range keys {
		raws = append(raws, m.data[k])
	}
	m.mu.RUnlock()

	out := make([]any, 0, len(raws))
	for _, raw := range raws {
		obj := factory()
		if err := json.Unmarshal(raw, obj); err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
