// Package apperr defines the error taxonomy shared by the layout, export and
// admin services and maps it onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every error produced by this package wraps exactly one of them.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrStorage           = errors.New("storage error")
	ErrExportWrite       = errors.New("export write error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrForbidden         = errors.New("forbidden")
)

// Error carries a user-facing message, the taxonomy kind and an optional cause
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Is reports whether target is the taxonomy kind of this error
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation returns a validation error with a user-facing message
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error for the given subject
func NotFound(subject string) error {
	return &Error{Kind: ErrNotFound, Message: subject + " not found"}
}

// Storage wraps a persistence failure
func Storage(op string, cause error) error {
	return &Error{Kind: ErrStorage, Message: op, Cause: cause}
}

// ExportWrite wraps a format-writer failure
func ExportWrite(format string, cause error) error {
	return &Error{Kind: ErrExportWrite, Message: "export failed: " + format + " writer", Cause: cause}
}

// UnsupportedFormat reports an export format outside the supported set
func UnsupportedFormat(format string) error {
	return &Error{Kind: ErrUnsupportedFormat, Message: "unsupported format: " + format}
}

// Forbidden reports an operation the caller's role does not allow
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

// Message returns the user-facing message of err
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Kind == ErrExportWrite && appErr.Cause != nil {
			return fmt.Sprintf("export failed: %v", appErr.Cause)
		}
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error onto an HTTP status code
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
