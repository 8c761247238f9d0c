// Package apperr defines the closed set of error categories surfaced to API
// callers and their translation into HTTP status codes and response payloads.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies an error category. The value doubles as the machine readable
// code in response payloads.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation_failed"
	KindInvalidArgument Kind = "invalid_argument"
	KindDataAccess      Kind = "data_access_failure"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
)

// Messages shown to callers when no more specific text applies.
const (
	MsgValidationFailed = "Validation failed"
	MsgUnexpected       = "An unexpected error occurred."
	MsgUnauthenticated  = "Authentication required"
	MsgForbidden        = "Insufficient permissions"
)

// Error is the error type carried through the service and HTTP layers.
// Message is always safe to show to a caller; the wrapped cause is not.
type Error struct {
	Kind     Kind
	Message  string
	Messages []string
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int { return Status(e.Kind) }

// NotFound reports a missing resource. msg should name the resource and id,
// for example "Book with ID 7 not found".
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NotFoundf is NotFound with formatting.
func NotFoundf(format string, args ...any) *Error {
	return NotFound(fmt.Sprintf(format, args...))
}

// Validation reports every violated field rule at once.
func Validation(messages []string) *Error {
	msgs := make([]string, len(messages))
	copy(msgs, messages)
	return &Error{Kind: KindValidation, Message: MsgValidationFailed, Messages: msgs}
}

// InvalidArgument reports structurally malformed input such as an
// unparsable id or body.
func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

// DataAccess wraps a storage failure. msg is a generic, caller-safe sentence;
// cause is kept for logs and errors.Is checks only.
func DataAccess(msg string, cause error) *Error {
	if msg == "" {
		msg = MsgUnexpected
	}
	return &Error{Kind: KindDataAccess, Message: msg, cause: cause}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: MsgUnauthenticated}
}

func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: MsgForbidden}
}

// Status maps a kind to its HTTP status code. Unknown kinds map to 500.
func Status(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// From classifies any error. Errors that are not *Error become a
// DataAccess failure with the generic message, so nothing internal leaks.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return DataAccess(MsgUnexpected, err)
}

// KindOf returns the kind of err, or the empty kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
