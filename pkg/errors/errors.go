package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for routing and HTTP mapping.
//
// The distinction between KindBadRequest and every other kind carries
// behavior: a driver that reports KindBadRequest is saying the request
// itself is malformed for that backend, so the coordinator surfaces it
// directly instead of failing over to the next tier.
type Kind string

const (
	KindBadRequest       Kind = "BAD_REQUEST"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindForbidden        Kind = "FORBIDDEN"
	KindNotFound         Kind = "NOT_FOUND"
	KindMethodNotAllowed Kind = "METHOD_NOT_ALLOWED"
	KindConflict         Kind = "CONFLICT"
	KindNotImplemented   Kind = "NOT_IMPLEMENTED"
	KindUnavailable      Kind = "UNAVAILABLE"
)

// AppError is the error type used across the application layers.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to its HTTP status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusServiceUnavailable
	}
}

// Constructor functions for each kind

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) error {
	return &AppError{Kind: KindBadRequest, Message: message}
}

// NewUnauthorized creates an unauthorized error.
func NewUnauthorized(message string) error {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

// NewForbidden creates a forbidden error.
func NewForbidden(message string) error {
	return &AppError{Kind: KindForbidden, Message: message}
}

// NewNotFound creates a not found error.
func NewNotFound(message string) error {
	return &AppError{Kind: KindNotFound, Message: message}
}

// NewMethodNotAllowed creates a method not allowed error.
func NewMethodNotAllowed(message string) error {
	return &AppError{Kind: KindMethodNotAllowed, Message: message}
}

// NewConflict creates a conflict error.
func NewConflict(message string) error {
	return &AppError{Kind: KindConflict, Message: message}
}

// NewNotImplemented creates a not implemented error.
func NewNotImplemented(message string) error {
	return &AppError{Kind: KindNotImplemented, Message: message}
}

// NewUnavailable creates a service unavailable error wrapping the driver cause.
func NewUnavailable(message string, err error) error {
	return &AppError{Kind: KindUnavailable, Message: message, Err: err}
}

// Wrap wraps an error with additional context, preserving the kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Kind:    appErr.Kind,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{Kind: KindUnavailable, Message: message, Err: err}
}

// Kind checking functions

// IsKind checks whether an error carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// IsBadRequest checks if an error is a bad request error.
func IsBadRequest(err error) bool {
	return IsKind(err, KindBadRequest)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return IsKind(err, KindConflict)
}

// IsForbidden checks if an error is a forbidden error.
func IsForbidden(err error) bool {
	return IsKind(err, KindForbidden)
}

// IsUnauthorized checks if an error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return IsKind(err, KindUnauthorized)
}

// IsUnavailable checks if an error is a service unavailable error.
func IsUnavailable(err error) bool {
	return IsKind(err, KindUnavailable)
}

// StatusOf returns the HTTP status for any error, defaulting unknown
// errors to 503 the way driver failures surface.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusServiceUnavailable
}
