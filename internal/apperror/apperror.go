// Package apperror is the error taxonomy shared by the note service and the
// HTTP error middleware.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified error with a client-facing message.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error { return newf(Validation, format, args...) }

func NotFoundf(format string, args ...any) *Error { return newf(NotFound, format, args...) }

func Unauthorizedf(format string, args ...any) *Error { return newf(Unauthorized, format, args...) }

// Invalid returns a validation error carrying field-level detail.
func Invalid(message string, fields ...FieldError) *Error {
	return &Error{Kind: Validation, Message: message, Fields: fields}
}

// Required lists each named field as missing.
func Required(names ...string) []FieldError {
	out := make([]FieldError, 0, len(names))
	for _, n := range names {
		out = append(out, FieldError{Field: n, Message: n + " is required"})
	}
	return out
}

// Wrap marks err as internal while keeping it in the chain.
func Wrap(err error, msg string) *Error {
	return &Error{Kind: Internal, Message: msg, Err: err}
}

// KindOf reports the kind of err; unclassified errors are Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err is classified as k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
