// Package errors provides structured error types for the recipe
// dependency engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and HTTP API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map to the resolution failure taxonomy: descriptor problems
// (INVALID_DESCRIPTOR, UNSUPPORTED_API_VERSION, DESCRIPTOR_UNAVAILABLE),
// graph problems (DEPENDENCY_CONFLICT, DEPENDENCY_CYCLE), and
// materialization problems (MATERIALIZATION_FAILED).
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDependencyCycle, "cycle via %s", id)
//	if errors.Is(err, errors.ErrCodeDependencyCycle) {
//	    // Handle cycle error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDescriptorUnavailable, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different failure categories.
const (
	// Descriptor errors
	ErrCodeInvalidDescriptor     Code = "INVALID_DESCRIPTOR"
	ErrCodeUnsupportedAPIVersion Code = "UNSUPPORTED_API_VERSION"
	ErrCodeDescriptorUnavailable Code = "DESCRIPTOR_UNAVAILABLE"

	// Resolution errors
	ErrCodeDependencyConflict Code = "DEPENDENCY_CONFLICT"
	ErrCodeDependencyCycle    Code = "DEPENDENCY_CYCLE"

	// Materialization errors (reported by the VCS collaborator)
	ErrCodeMaterializationFailed Code = "MATERIALIZATION_FAILED"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
