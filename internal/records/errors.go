package records

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateID    = errors.New("record id already present")
	ErrEmptyID        = errors.New("record id empty")
	ErrNotLoaded      = errors.New("store not loaded")
)

// DecodeError means the persisted payload under Key could not be decoded.
// The store treats the collection as absent and keeps working.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode collection [%s]: %s", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// WriteError means the in-memory state changed but could not be persisted.
// Memory stays authoritative; the next successful write converges.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write collection [%s]: %s", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

func IsWriteError(err error) bool {
	var writeErr *WriteError
	return errors.As(err, &writeErr)
}
