package store

import (
	"errors"
	"fmt"
)

// ErrorCode is the client-facing error category a store error maps to.
type ErrorCode string

const (
	// CodeUnknownResource is returned to clients for unknown stores.
	CodeUnknownResource ErrorCode = "unknown-resource"
)

// UnknownStoreError reports a store id with no registered backend.
type UnknownStoreError struct {
	StoreID string
}

// Error implements the error interface.
func (e *UnknownStoreError) Error() string {
	return fmt.Sprintf("%s: no store registered with id %q", e.Code(), e.StoreID)
}

// Code returns the client-facing error category.
func (e *UnknownStoreError) Code() ErrorCode {
	return CodeUnknownResource
}

// IsUnknownStoreError returns true if err is or wraps an UnknownStoreError.
func IsUnknownStoreError(err error) bool {
	var ue *UnknownStoreError
	return errors.As(err, &ue)
}
