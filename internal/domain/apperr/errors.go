// Package apperr holds the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
	KindExecution
	KindPersistence
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindExecution:
		return "execution"
	case KindPersistence:
		return "persistence"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to the status code returned by the API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Message is safe to show to users,
// Details is optional diagnostic text (engine body, scanner stderr).
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Kinder is implemented by errors that classify themselves without being *Error.
type Kinder interface {
	Kind() Kind
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error   { return newErr(KindValidation, msg, nil) }
func Unauthorized(msg string) *Error { return newErr(KindUnauthorized, msg, nil) }
func Forbidden(msg string) *Error    { return newErr(KindForbidden, msg, nil) }
func NotFound(msg string) *Error     { return newErr(KindNotFound, msg, nil) }
func Conflict(msg string) *Error     { return newErr(KindConflict, msg, nil) }

func NotImplemented(msg string) *Error { return newErr(KindNotImplemented, msg, nil) }

// Upstream wraps a failure of the External Analysis Engine.
func Upstream(msg string, err error) *Error { return newErr(KindUpstream, msg, err) }

// Execution wraps a failure of the scanner process.
func Execution(msg string, err error) *Error { return newErr(KindExecution, msg, err) }

// Persistence wraps a store read/write failure.
func Persistence(msg string, err error) *Error { return newErr(KindPersistence, msg, err) }

// WithDetails sets Details and returns the same error.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}
