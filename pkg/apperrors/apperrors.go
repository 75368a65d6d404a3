package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the failure taxonomy.
const (
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNetworkFailure       = "NETWORK_FAILURE"
	CodeConflict             = "CONFLICT"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error standardizes application errors across the client core and the
// stub authority.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error.
func New(code, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewAuthenticationFailed(message string) error {
	return New(CodeAuthenticationFailed, message, http.StatusUnauthorized, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &Error{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewValidationFailed(message string, details map[string]any) error {
	return New(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNetworkFailure(message string, err error) error {
	return &Error{
		Code:       CodeNetworkFailure,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewConflict(message string, details map[string]any) error {
	return New(CodeConflict, message, http.StatusConflict, details)
}

func NewForbidden(message string) error {
	return New(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternal(err error) error {
	return &Error{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// From converts a generic error into an *Error, wrapping unknown causes
// as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// IsNotFound reports whether err is an entity-absent failure, distinct
// from a transient network failure.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsNetworkFailure reports whether err is a transport-level failure.
func IsNetworkFailure(err error) bool {
	return IsCode(err, CodeNetworkFailure)
}
