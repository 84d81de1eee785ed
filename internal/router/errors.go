package router

import (
	"errors"
	"fmt"

	"github.com/roach88/streamhub/internal/store"
)

// ErrorCode is the client-facing error category a router error maps to.
type ErrorCode = store.ErrorCode

const (
	// CodeInvalidRequestStructure is returned to clients for malformed or
	// store-inconsistent queries.
	CodeInvalidRequestStructure ErrorCode = "invalid-request-structure"

	// CodeUnknownResource is returned to clients for unknown stores.
	CodeUnknownResource = store.CodeUnknownResource
)

// QueryShapeError reports a query that cannot be routed: mixed stores in
// one AND-block, conflicting id/headId/streams stores, or a structurally
// invalid stream query.
type QueryShapeError struct {
	// Message is a human-readable description.
	Message string

	// Block is the index of the offending AND-block, or -1.
	Block int

	// Stores lists the conflicting store ids, when relevant.
	Stores []string

	// Err is the underlying validation error, if any.
	Err error
}

// Error implements the error interface.
func (e *QueryShapeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code(), e.Message)
	if e.Block >= 0 {
		msg = fmt.Sprintf("%s (block=%d)", msg, e.Block)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying validation error.
func (e *QueryShapeError) Unwrap() error {
	return e.Err
}

// Code returns the client-facing error category.
func (e *QueryShapeError) Code() ErrorCode {
	return CodeInvalidRequestStructure
}

// UnknownStoreError reports a stream id whose store has no backend.
type UnknownStoreError = store.UnknownStoreError

// IsQueryShapeError returns true if err is or wraps a QueryShapeError.
func IsQueryShapeError(err error) bool {
	var qe *QueryShapeError
	return errors.As(err, &qe)
}

// IsUnknownStoreError returns true if err is or wraps an UnknownStoreError.
func IsUnknownStoreError(err error) bool {
	return store.IsUnknownStoreError(err)
}

func newShapeError(block int, format string, args ...any) *QueryShapeError {
	return &QueryShapeError{Message: fmt.Sprintf(format, args...), Block: block}
}
