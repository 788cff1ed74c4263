package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies business failures so callers can map them to transport codes.
type Kind string

const (
	KindInternal               Kind = "internal"
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindValidation             Kind = "validation"
	KindInsufficientStock      Kind = "insufficient_stock"
	KindIllegalStateTransition Kind = "illegal_state_transition"
	KindUpstreamUnavailable    Kind = "upstream_unavailable"
)

// Error carries a kind, a self-contained message and the offending entities.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if len(e.Details) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Details, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Public returns the message meant for end users, never including the wrapped cause.
func (e *Error) Public() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Details, ", "))
}

func newError(kind Kind, message string, details []string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

func NotFound(message string, details ...string) *Error {
	return newError(KindNotFound, message, details)
}

func Conflict(message string, details ...string) *Error {
	return newError(KindConflict, message, details)
}

func Validation(message string, details ...string) *Error {
	return newError(KindValidation, message, details)
}

func InsufficientStock(message string, details ...string) *Error {
	return newError(KindInsufficientStock, message, details)
}

func IllegalStateTransition(message string) *Error {
	return newError(KindIllegalStateTransition, message, nil)
}

// UpstreamUnavailable wraps the last failure of an external collaborator.
func UpstreamUnavailable(message string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: message, Err: err}
}

// KindOf reports the kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindInsufficientStock, KindIllegalStateTransition:
		return http.StatusUnprocessableEntity
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
