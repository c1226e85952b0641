package store

import (
	"errors"
	"fmt"
)

// StoreError represents a store operation failure with a stable code.
type StoreError struct {
	// Code identifies the error category.
	Code StoreErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// StoreErrorCode categorizes store errors.
type StoreErrorCode string

const (
	// ErrCodeNotFound indicates the requested record does not exist.
	ErrCodeNotFound StoreErrorCode = "NOT_FOUND"

	// ErrCodeInvalidFilter indicates a condition could not be compiled for
	// the store's dialect.
	ErrCodeInvalidFilter StoreErrorCode = "INVALID_FILTER"

	// ErrCodeInvalidArgument indicates a malformed input such as an empty
	// filter name.
	ErrCodeInvalidArgument StoreErrorCode = "INVALID_ARGUMENT"

	// ErrCodeCorrupt indicates a stored value could not be decoded.
	ErrCodeCorrupt StoreErrorCode = "CORRUPT"
)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error is a not-found store error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == ErrCodeNotFound
	}
	return false
}

// IsInvalidFilter returns true if a condition was rejected by the store.
func IsInvalidFilter(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidFilter
	}
	return false
}

func notFound(format string, args ...any) *StoreError {
	return &StoreError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}
