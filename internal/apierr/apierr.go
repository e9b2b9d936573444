// Package apierr provides typed errors for the JSON API. The [Type] of an
// [Error] decides the HTTP status code written back to the client.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type classifies an error by the response it should produce.
type Type uint8

const (
	// TypeUnknown maps to 500.
	TypeUnknown Type = iota
	TypeBadRequest
	TypeNotFound
	TypeUnauthorized
	TypeConflict
	// TypeUnavailable is used when a required integration is not configured.
	TypeUnavailable
)

// Error carries a client-facing message and, optionally, the underlying cause.
type Error struct {
	Wrapped error
	Type    Type
	Message string
}

// New creates an error of the given type. msg is formatted with args.
func New(ty Type, wrapped error, msg string, args ...any) *Error {
	return &Error{
		Wrapped: wrapped,
		Type:    ty,
		Message: fmt.Sprintf(msg, args...),
	}
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return e.Message + ": " + e.Wrapped.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Wrapped, target)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Status returns the HTTP status for t.
func (t Type) Status() int {
	switch t {
	case TypeBadRequest:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeConflict:
		return http.StatusBadRequest
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Resolve returns the status code and client message for err. Errors that
// are not an *Error produce a 500 with a generic message so internal details
// never reach the client.
func Resolve(err error) (int, string) {
	var target *Error
	if errors.As(err, &target) {
		return target.Type.Status(), target.Message
	}
	return http.StatusInternalServerError, "Internal server error"
}
