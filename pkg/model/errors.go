package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when a document or room is not found
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when trying to create a document that already exists
	ErrExists = errors.New("document already exists")
	// ErrPermissionDenied is returned when the acting user may not reach a resource
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument is returned for malformed user input
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAssertionFailed signals an integration defect, never a user mistake
	ErrAssertionFailed = errors.New("assertion failed")
	// ErrUnavailable is returned when a collaborator cannot be reached
	ErrUnavailable = errors.New("service unavailable")
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")
)

// ErrorKind is the classification callers use to pick a response status.
type ErrorKind int

const (
	KindInternal ErrorKind = iota + 1
	KindBadRequest
	KindNotFound
	KindConflict
	KindForbidden
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to the response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf returns the response status of err, 200 for nil.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsCanceled(err) {
		return 499
	}
	return KindOf(err).HTTPStatus()
}

// Error is a classified error carrying a stable identifier such as
// "api.assert.invalid_type".
type Error struct {
	Kind    ErrorKind
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.ID + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error. The sentinel matching kind is wrapped
// so errors.Is keeps working against the package sentinels.
func NewError(kind ErrorKind, id string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		ID:      id,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinelFor(kind),
	}
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindBadRequest:
		return ErrInvalidArgument
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrExists
	case KindForbidden:
		return ErrPermissionDenied
	case KindUnavailable:
		return ErrUnavailable
	default:
		return ErrAssertionFailed
	}
}

// AssertionFailed reports a fatal integration defect.
func AssertionFailed(format string, args ...interface{}) *Error {
	return NewError(KindInternal, "core.fatal.assertion_failed", format, args...)
}

// InvalidType reports an argument holding a value of the wrong type.
func InvalidType(name string, value interface{}, expected string) *Error {
	return NewError(KindBadRequest, "api.assert.invalid_type",
		"wrong type for argument %q (expected: %s, got: %T)", name, expected, value)
}

// MissingArgument reports a required argument that was not provided.
func MissingArgument(name string) *Error {
	return NewError(KindBadRequest, "api.assert.missing_argument", "missing argument %q", name)
}

// EmptyArgument reports a required argument that was provided empty.
func EmptyArgument(name string) *Error {
	return NewError(KindBadRequest, "api.assert.empty_argument", "argument %q cannot be empty", name)
}

// KindOf classifies any error. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return KindBadRequest
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExists):
		return KindConflict
	case errors.Is(err, ErrPermissionDenied):
		return KindForbidden
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// ErrorID returns the stable identifier of err, or a generic one.
func ErrorID(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.ID
	}
	switch KindOf(err) {
	case KindBadRequest:
		return "api.assert.invalid_argument"
	case KindNotFound:
		return "services.storage.not_found"
	case KindConflict:
		return "services.storage.document_already_exists"
	case KindForbidden:
		return "security.rights.forbidden"
	case KindUnavailable:
		return "core.unavailable"
	default:
		return "core.fatal.unexpected_error"
	}
}

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from MongoDB driver).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	// Check for wrapped context errors (e.g., from MongoDB driver)
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
