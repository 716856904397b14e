// Package apperr defines the domain error taxonomy shared by services and the
// HTTP error translator. Services return *Error values (usually one of the
// sentinels below, optionally wrapped); only the translator turns them into an
// HTTP status and envelope code.
package apperr

import (
	"errors"
	"net/http"
)

// Code is the numeric code carried in the response envelope. Zero means success.
type Code int

const (
	CodeOK Code = 0

	CodeBadRequest              Code = 1000
	CodeValidation              Code = 1001
	CodeNotFound                Code = 1004
	CodeInvalidVerificationCode Code = 1005
	CodeDuplicate               Code = 1006
	CodeRateLimited             Code = 1007

	CodeUnauthenticated Code = 2001
	CodeTokenExpired    Code = 2002
	CodeTokenInvalid    Code = 2003
	CodeBadCredentials  Code = 2004
	CodeAccountLocked   Code = 2005
	CodeForbidden       Code = 2006

	CodeInternal Code = 5000
)

// Error is a typed domain failure.
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

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, apperr.ErrTokenExpired) matches any expired-token error
// regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New returns an error with the given code and client-facing message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause. The cause is logged by the translator for internal
// errors and never shown to the client.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinels, one per code.
var (
	ErrBadRequest              = New(CodeBadRequest, "bad request")
	ErrValidation              = New(CodeValidation, "validation failed")
	ErrNotFound                = New(CodeNotFound, "resource not found")
	ErrInvalidVerificationCode = New(CodeInvalidVerificationCode, "invalid verification code")
	ErrDuplicate               = New(CodeDuplicate, "resource already exists")
	ErrRateLimited             = New(CodeRateLimited, "too many attempts, try again later")

	ErrUnauthenticated = New(CodeUnauthenticated, "authentication required")
	ErrTokenExpired    = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid    = New(CodeTokenInvalid, "invalid token")
	ErrBadCredentials  = New(CodeBadCredentials, "invalid email or password")
	ErrAccountLocked   = New(CodeAccountLocked, "account temporarily locked")
	ErrForbidden       = New(CodeForbidden, "access denied")

	ErrInternal = New(CodeInternal, "internal server error")
)

// Status maps an envelope code to its HTTP status.
func Status(code Code) int {
	switch {
	case code == CodeOK:
		return http.StatusOK
	case code == CodeNotFound:
		return http.StatusNotFound
	case code == CodeForbidden:
		return http.StatusForbidden
	case code >= 1000 && code < 2000:
		return http.StatusBadRequest
	case code >= 2000 && code < 3000:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
