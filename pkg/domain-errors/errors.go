// Package dErrors provides coded domain errors. Services translate store
// sentinels into these; the transport layer translates codes into HTTP
// statuses. Codes describe business outcomes, not infrastructure facts.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeNotFound: a referenced event, student, certificate or attendance
	// record does not exist.
	CodeNotFound Code = "not_found"
	// CodeTerminalState: re-revoking a revoked certificate or
	// re-invalidating an invalidated attendance record.
	CodeTerminalState Code = "already_in_terminal_state"
	// CodePreconditionFailed: the operation's business precondition does not
	// hold (e.g. add_attendance with no registration).
	CodePreconditionFailed Code = "precondition_failed"
	// CodeConcurrentModification: an optimistic re-check failed because a
	// concurrent writer got there first.
	CodeConcurrentModification Code = "concurrent_modification"
	// CodeValidation: malformed input (unknown action, empty ID).
	CodeValidation Code = "validation_error"
	// CodeUnauthorized: missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal: unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error that may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
