package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Handlers map these onto HTTP status codes.
var (
	ErrNotFound       = errors.New("not found")
	ErrBadRequest     = errors.New("bad request")
	ErrStoreTransient = errors.New("store transient failure")
	ErrStorePermanent = errors.New("store permanent failure")
)

// StoreError wraps a driver error with its classification and the shape of
// the statement that failed. Values are never included.
type StoreError struct {
	Op      string
	Kind    error
	Wrapped error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Wrapped)
}

func (e *StoreError) Unwrap() error { return e.Kind }

// NewStoreError classifies a repository failure.
func NewStoreError(op string, kind, wrapped error) *StoreError {
	return &StoreError{Op: op, Kind: kind, Wrapped: wrapped}
}
