// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Error is a typed service error carrying the HTTP status it should be
// rendered with. Quota denials are not errors; they are decision values
// returned by the gate.
type Error struct {
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// InvalidArgument rejects malformed input before storage is touched.
func InvalidArgument(msg string) error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// NotFound marks a missing entity.
func NotFound(msg string) error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

// Unavailable wraps a genuine infrastructure failure (storage
// unreachable). The quota gate applies its fail-open/fail-closed policy
// before this ever reaches the transport.
func Unavailable(cause error) error {
	return &Error{Status: http.StatusServiceUnavailable, Message: "storage unavailable", cause: cause}
}

// HTTPStatus converts any error into the status/message pair a handler
// should respond with. Centralizes mapping so services stay clean.
func HTTPStatus(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Status, e.Message
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "record not found"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request was canceled"

	default:
		// fallback: bubble up error message for debugging
		return http.StatusInternalServerError, err.Error()
	}
}
