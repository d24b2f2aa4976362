package store

import "fmt"

// ConflictError reports a unique index violation. Error returns the driver's
// own text so duplicate-key markers such as E11000 survive wrapping.
type ConflictError struct {
	Collection string
	Err        error
}

func (e *ConflictError) Error() string {
	return e.Err.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// StoreError is any other failure reported by the backing store.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op, collection string, err error) error {
	return &StoreError{Op: op, Collection: collection, Err: err}
}
