// Package apperr defines the API error taxonomy. Every handler failure is
// expressed as one of these values so responses stay consistent and error
// messages never leak more than intended.
package apperr

import (
	"errors"
	"net/http"
)

// Error codes surfaced in the response envelope.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeInternal       = "INTERNAL_ERROR"
)

// Error is an API-visible error with an HTTP status and a stable code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Status: http.StatusUnauthorized, Code: CodeAuthentication, Message: message}
}

func Authorization(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return &Error{Status: http.StatusForbidden, Code: CodeAuthorization, Message: message}
}

func NotFound(resource string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func Conflict(message string) *Error {
	if message == "" {
		message = "Resource already exists"
	}
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

func RateLimited(message string) *Error {
	if message == "" {
		message = "Too many requests, please try again later"
	}
	return &Error{Status: http.StatusTooManyRequests, Code: CodeRateLimit, Message: message}
}

// From extracts the *Error from err, or wraps unknown errors as a generic
// internal error so database details are never surfaced to clients.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error"}
}
