// Package apperror maps failures to HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"go-storefront/storage"
)

// Kind classifies an error by the response it should produce.
type Kind string

const (
	BadRequest      Kind = "bad_request"
	Unauthorized    Kind = "unauthorized"
	Forbidden       Kind = "forbidden"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	TooManyRequests Kind = "too_many_requests"
	Internal        Kind = "internal_error"
)

var statusByKind = map[Kind]int{
	BadRequest:      http.StatusBadRequest,
	Unauthorized:    http.StatusUnauthorized,
	Forbidden:       http.StatusForbidden,
	NotFound:        http.StatusNotFound,
	Conflict:        http.StatusConflict,
	TooManyRequests: http.StatusTooManyRequests,
	Internal:        http.StatusInternalServerError,
}

// Error is an error with a user-facing message. Err keeps the cause for
// logging and is never sent to clients.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is the HTTP status code for the error's kind.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches structured details, e.g. the list of missing fields.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// From converts any error into an *Error. Storage sentinels keep their
// message; anything unrecognised becomes a generic internal error.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Wrap(NotFound, "Resource not found", err)
	case errors.Is(err, storage.ErrDuplicate):
		return Wrap(Conflict, "Resource already exists", err)
	case errors.Is(err, storage.ErrEmptyCart):
		return Wrap(BadRequest, "Cart is empty", err)
	case errors.Is(err, storage.ErrInsufficientStock):
		return Wrap(BadRequest, "Insufficient stock", err)
	case errors.Is(err, storage.ErrInvalidTransition),
		errors.Is(err, storage.ErrInvalidInput):
		return Wrap(BadRequest, err.Error(), err)
	}
	return Wrap(Internal, "Internal server error", err)
}
