// Package apperr defines the application error taxonomy. Every failure that
// crosses a service boundary is wrapped into an *Error carrying one of the
// codes below, and the HTTP layer translates codes into response statuses.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes used across the application.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUnavailable     = "UNAVAILABLE"
	CodeUpstream        = "UPSTREAM"
	CodeInternal        = "INTERNAL"
)

// Error is a tagged application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

// Code returns the error's taxonomy code.
func (e *Error) Code() string {
	return e.code
}

// Message returns the client-facing message without the wrapped cause.
func (e *Error) Message() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code extracts the taxonomy code from err, or CodeInternal if err is not an
// application error.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeInternal
}

// Message extracts the client-facing message from err. Non-application errors
// collapse to a generic message so internal details never leak to clients.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return "internal error"
}

// NewInvalidArgument reports missing or malformed client input.
func NewInvalidArgument(message string) error {
	return &Error{code: CodeInvalidArgument, message: message}
}

// NewNotFound reports an absent referenced entity.
func NewNotFound(message string) error {
	return &Error{code: CodeNotFound, message: message}
}

// NewConflict reports a state conflict, such as an identity already bound to
// a different person.
func NewConflict(message string) error {
	return &Error{code: CodeConflict, message: message}
}

// NewUnavailable reports an unconfigured downstream dependency.
func NewUnavailable(message string) error {
	return &Error{code: CodeUnavailable, message: message}
}

// NewUpstream reports a reachable downstream dependency that failed.
func NewUpstream(message string, cause error) error {
	return &Error{code: CodeUpstream, message: message, err: cause}
}

// NewInternal reports an unanticipated failure.
func NewInternal(message string, cause error) error {
	return &Error{code: CodeInternal, message: message, err: cause}
}
