package fsdb

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for package fsdb.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Path errors
	ErrNotFound        = errors.New("no such file or directory")
	ErrAlreadyExists   = errors.New("file exists")
	ErrInvalidPath     = errors.New("path must be absolute")
	ErrInvalidArgument = errors.New("invalid argument")

	// Type errors
	ErrPermission   = errors.New("operation not permitted")
	ErrNotEmpty     = errors.New("directory not empty")
	ErrFileTooLarge = errors.New("file too large")

	// Consistency errors
	ErrInvalidState = errors.New("store is in an invalid state")
	ErrReadOnly     = errors.New("transaction is read-only")

	// Engine errors
	ErrStoreFailure = errors.New("store failure")
)

// StoreError wraps a failure of the underlying engine, including records
// that exist but cannot be decoded.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStoreFailure.
func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// storeErr classifies an engine error. Context errors pass through
// untouched so callers can tell cancellation from I/O failure.
func storeErr(op string, key []byte, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StoreError{Op: op, Key: string(key), Err: err}
}
