package metadata

import (
	"errors"
	"fmt"
)

// StoreError is a domain error returned by registry operations.
//
// These describe registry outcomes (record missing, key exhausted) rather
// than infrastructure failures. The file service translates Code into its
// own error kinds.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Key identifies the record involved (public id, storage key or user id)
	Key string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg += ": " + e.Key
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches another *StoreError with the same Code, so callers can write
// errors.Is(err, &StoreError{Code: ErrNotFound}).
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Code == e.Code
}

// ErrorCode represents the category of a registry error.
type ErrorCode int

const (
	// ErrNotFound indicates the file, right, user or reservation doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a uniqueness constraint was violated
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: empty owner id, self-grant, blank display name
	ErrInvalidArgument

	// ErrIOError indicates the backing store failed
	ErrIOError

	// ErrResolutionExhausted indicates no free storage key was found
	ErrResolutionExhausted

	// ErrIDCollision indicates a generated public id was already taken.
	// Registries retry internally; it never leaves the registry.
	ErrIDCollision

	// ErrNotReserved indicates CreateFile was called for a storage key with
	// no pending reservation
	ErrNotReserved
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrIOError:
		return "io_error"
	case ErrResolutionExhausted:
		return "resolution_exhausted"
	case ErrIDCollision:
		return "id_collision"
	case ErrNotReserved:
		return "not_reserved"
	default:
		return fmt.Sprintf("error_code(%d)", int(c))
	}
}

// NewNotFoundError builds an ErrNotFound for the given kind of record.
func NewNotFoundError(kind, key string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: kind + " not found", Key: key}
}

// NewInvalidArgumentError builds an ErrInvalidArgument.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: message}
}

// NewIOError wraps a backend failure.
func NewIOError(op string, err error) *StoreError {
	return &StoreError{Code: ErrIOError, Message: op + " failed", Err: err}
}

// CodeOf extracts the ErrorCode from err. ok is false for non-registry
// errors.
func CodeOf(err error) (code ErrorCode, ok bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is a registry ErrNotFound.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}
