package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an AppError. Each code maps to one HTTP status.
type ErrorCode int

const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConflict
	ErrUnavailable
)

var statusByCode = map[ErrorCode]int{
	ErrNotFound:     http.StatusNotFound,
	ErrBadRequest:   http.StatusBadRequest,
	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,
	ErrInternal:     http.StatusInternalServerError,
	ErrConflict:     http.StatusConflict,
	ErrUnavailable:  http.StatusServiceUnavailable,
}

// GenericMessage is shown to users for failures that carry no safe detail.
const GenericMessage = "something went wrong, please try again later"

// AppError pairs a client-safe Message with the underlying cause, which is
// only ever logged.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NotFound(resource string, err error) *AppError {
	return newError(ErrNotFound, resource+" not found", err)
}

func BadRequest(message string, err error) *AppError {
	return newError(ErrBadRequest, message, err)
}

// Unauthorized is the plain "sign in first" answer.
func Unauthorized(err error) *AppError {
	return newError(ErrUnauthorized, "unauthorized", err)
}

// Unauthenticated rejects a sign-in attempt with a reason the client may see.
func Unauthenticated(message string, err error) *AppError {
	return newError(ErrUnauthorized, message, err)
}

func Forbidden(message string, err error) *AppError {
	return newError(ErrForbidden, message, err)
}

func Conflict(message string, err error) *AppError {
	return newError(ErrConflict, message, err)
}

func Unavailable(message string, err error) *AppError {
	return newError(ErrUnavailable, message, err)
}

// Internal hides err behind GenericMessage.
func Internal(err error) *AppError {
	return newError(ErrInternal, GenericMessage, err)
}

// IsInternal reports whether err renders as a 500, either because it is
// an internal AppError or because it is no AppError at all.
func IsInternal(err error) bool {
	return HTTPStatus(err) == http.StatusInternalServerError
}

// HTTPStatus maps err to a response status. Errors that are not AppErrors
// are internal.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, ok := statusByCode[appErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show to a client.
func PublicMessage(err error) string {
	if IsInternal(err) {
		return GenericMessage
	}
	var appErr *AppError
	errors.As(err, &appErr)
	return appErr.Message
}
