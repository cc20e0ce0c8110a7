// Package apperr defines the closed error taxonomy shared by the server,
// the wire protocol and the client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeLocked     Code = "LOCKED"
	CodeDuplicate  Code = "DUPLICATE"
	CodeNotFound   Code = "NOT_FOUND"
	CodeForbidden  Code = "FORBIDDEN"
	CodeCooldown   Code = "COOLDOWN"
	CodeConnection Code = "CONNECTION"
)

type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so sentinel comparisons
// like errors.Is(err, apperr.NotFound("")) work regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

func Validation(format string, args ...any) *Error { return New(CodeValidation, format, args...) }
func Locked(format string, args ...any) *Error     { return New(CodeLocked, format, args...) }
func Duplicate(format string, args ...any) *Error  { return New(CodeDuplicate, format, args...) }
func NotFound(format string, args ...any) *Error   { return New(CodeNotFound, format, args...) }
func Forbidden(format string, args ...any) *Error  { return New(CodeForbidden, format, args...) }
func Cooldown(format string, args ...any) *Error   { return New(CodeCooldown, format, args...) }
func Connection(format string, args ...any) *Error { return New(CodeConnection, format, args...) }

// CodeOf extracts the taxonomy code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// HTTPStatus maps a code to the status the HTTP layer responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeLocked:
		return http.StatusLocked
	case CodeDuplicate:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeCooldown:
		return http.StatusTooManyRequests
	case CodeConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
