// Package intake defines the classified error type shared by the intake
// pipeline and the HTTP surface. Each failure carries exactly one class so
// callers can branch on the outcome instead of inspecting error strings.
package intake

import (
	"errors"
	"fmt"
	"net/http"
)

// Class partitions pipeline failures into the three externally visible
// outcomes.
type Class int

const (
	// ClassUnexpected covers infrastructure and programming failures. It is
	// the zero value so unclassified errors default to it.
	ClassUnexpected Class = iota
	// ClassInvalid marks malformed input, the caller's fault.
	ClassInvalid
	// ClassNotFound marks a referenced transaction or schema that is absent.
	ClassNotFound
)

// Error is the classified failure returned by pipeline stages. Message is the
// caller-visible reason; Err retains the internal cause for logging.
type Error struct {
	Class   Class
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the internal cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Invalid constructs a ClassInvalid error with an optional cause.
func Invalid(message string, cause error) *Error {
	return &Error{Class: ClassInvalid, Message: message, Err: cause}
}

// NotFound constructs a ClassNotFound error with an optional cause.
func NotFound(message string, cause error) *Error {
	return &Error{Class: ClassNotFound, Message: message, Err: cause}
}

// Unexpected wraps any other failure.
func Unexpected(message string, cause error) *Error {
	return &Error{Class: ClassUnexpected, Message: message, Err: cause}
}

// ClassOf extracts the class from an error chain. Anything that is not an
// *intake.Error is treated as unexpected.
func ClassOf(err error) Class {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Class
	}
	return ClassUnexpected
}

// HTTPStatus maps a class to the response status code.
func HTTPStatus(class Class) int {
	switch class {
	case ClassInvalid:
		return http.StatusBadRequest
	case ClassNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
