// Package store provides the record store backing the domain agents:
// employees, tickets, expenses, violations, trainings and the audit log.
//
// Keys follow the convention "/{kind}/{id}". The generic Store interface is
// implemented by an in-memory map (tests) and a BoltDB file (durable runs);
// Catalog layers typed accessors on top.
package store

import (
	"errors"
	"fmt"
)

// Store is the generic persistence interface.
type Store interface {
	// Create stores a new object at key. Returns ErrAlreadyExists if the
	// key is taken.
	Create(key string, value any) error

	// Get retrieves the object at key into target. Returns ErrNotFound if
	// the key does not exist.
	Get(key string, target any) error

	// Update replaces the object at key. Returns ErrNotFound if the key
	// does not exist.
	Update(key string, value any) error

	// Delete removes the object at key. Returns ErrNotFound if the key
	// does not exist.
	Delete(key string) error

	// List returns every object whose key starts with prefix, in key
	// order. factory creates the zero-value pointer each stored document
	// is decoded into.
	List(prefix string, factory func() any) ([]any, error)

	// Close releases resources (e.g. the BoltDB file handle).
	Close() error
}

// Common sentinel errors.
var (
	ErrAlreadyExists = errors.New("key already exists")
	ErrNotFound      = errors.New("key not found")
)

// Record kinds.
const (
	KindEmployee  = "Employee"
	KindTicket    = "Ticket"
	KindExpense   = "Expense"
	KindViolation = "Violation"
	KindTraining  = "Training"
	KindAudit     = "Audit"
)

// Key builds a canonical store key for a record.
//
//	Key(KindEmployee, "EMP001") => "/Employee/EMP001"
func Key(kind, id string) string {
	return fmt.Sprintf("/%s/%s", kind, id)
}

// Prefix builds the list prefix for a kind.
func Prefix(kind string) string {
	return fmt.Sprintf("/%s/", kind)
}
