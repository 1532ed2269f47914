// Package apperr classifies shortlink failures into a small taxonomy that
// transports (HTTP, gRPC) translate into status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrShortcodeTaken   = errors.New("shortcode taken")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrNotFound         = errors.New("not found")
	ErrGone             = errors.New("gone")
	ErrStoreUnavailable = errors.New("store unavailable")
)

const internalMessage = "Internal server error"

// Error pairs a taxonomy sentinel with a message that is safe to show to clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string) *Error {
	return New(ErrInvalidInput, message)
}

// Status maps err to the HTTP status of its taxonomy kind.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrShortcodeTaken), errors.Is(err, ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err. Store failures and
// unclassified errors collapse to a generic message.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if Status(err) >= http.StatusInternalServerError {
		return internalMessage
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "Short URL not found"
	case errors.Is(err, ErrGone):
		return "Short URL has expired"
	}
	return err.Error()
}
