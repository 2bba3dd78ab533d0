package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidState, ErrConflict:
		return http.StatusConflict
	case ErrUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrInvalidState
	ErrConflict
	ErrUpstreamUnavailable
)

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// InvalidState reports an illegal lifecycle transition.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidState,
		Message: message,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

// UpstreamUnavailable reports a failed or timed out collaborator call.
func UpstreamUnavailable(collaborator string, err error) *AppError {
	return &AppError{
		Code:    ErrUpstreamUnavailable,
		Message: fmt.Sprintf("%s unavailable", collaborator),
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
