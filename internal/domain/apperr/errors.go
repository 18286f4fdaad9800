// Package apperr holds the error taxonomy shared by every layer.
//
// Callers test categories with errors.Is against the sentinels below; the
// structured Error type carries a human readable message while still
// unwrapping to its category.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceNotFound is returned when a referenced entity does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrAccessNotPermitted is returned when the caller's identity or role does
	// not allow the operation.
	ErrAccessNotPermitted = errors.New("access not permitted")

	// ErrOperationNotPermitted is returned when the operation is illegal for the
	// current state or the input is invalid.
	ErrOperationNotPermitted = errors.New("operation not permitted")

	// ErrConcurrentModification is returned when an optimistic version check fails.
	ErrConcurrentModification = fmt.Errorf("%w: concurrent modification detected", ErrOperationNotPermitted)

	// ErrValidation is returned when input fails field validation.
	ErrValidation = fmt.Errorf("%w: validation failed", ErrOperationNotPermitted)
)

// Error is a categorized error with a caller-facing message
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound builds a resource-not-found error
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: ErrResourceNotFound, Message: fmt.Sprintf(format, args...)}
}

// AccessDenied builds an access-not-permitted error
func AccessDenied(format string, args ...interface{}) error {
	return &Error{Kind: ErrAccessNotPermitted, Message: fmt.Sprintf(format, args...)}
}

// NotPermitted builds an operation-not-permitted error
func NotPermitted(format string, args ...interface{}) error {
	return &Error{Kind: ErrOperationNotPermitted, Message: fmt.Sprintf(format, args...)}
}

// Invalid builds a validation error
func Invalid(format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound)
}

// IsAccessDenied returns true if the error is an authorization failure.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessNotPermitted)
}

// IsClientError returns true if the error is due to an illegal operation or bad input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrOperationNotPermitted)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
