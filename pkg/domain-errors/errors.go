// Package domainerrors carries stable, transport-independent error codes.
//
// Services return *Error values; the HTTP layer maps Code to a status and
// emits the code verbatim so clients can branch on it.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeInvalidIdentity        Code = "invalid_identity"
	CodeEventFull              Code = "event_full"
	CodeDuplicateRegistration  Code = "duplicate_registration"
	CodeAlreadyLinkedElsewhere Code = "already_linked_elsewhere"
	CodeUnauthorized           Code = "unauthorized"
	CodeUnauthenticated        Code = "unauthenticated"
	CodeNotFound               Code = "not_found"
	CodeInvalidInput           Code = "invalid_input"
	CodeBadRequest             Code = "bad_request"
	CodeConflict               Code = "conflict"
	CodeTimeout                Code = "timeout"
	CodeRateLimited            Code = "rate_limited"
	CodeInternal               Code = "internal_error"
)

// Error is a domain error with a code and a client-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost domain error in the chain,
// or CodeInternal when the chain holds none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost domain error in the chain has code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidIdentity, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeEventFull, CodeDuplicateRegistration, CodeAlreadyLinkedElsewhere, CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
