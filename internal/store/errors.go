package store

import (
	"errors"
	"fmt"
)

// Common storage errors.
var (
	// ErrNotFound is returned when a template or record does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict is returned when an entity with the same id already exists.
	ErrConflict = errors.New("entity already exists")
)

// PersistenceError wraps a backend failure. Callers surface it as-is; the
// store never retries.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistence returns true if err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
