package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure the engine reports to its collaborators
type ErrorKind string

const (
	KindNetwork        ErrorKind = "NETWORK"
	KindValidation     ErrorKind = "VALIDATION"
	KindAuthentication ErrorKind = "AUTHENTICATION"
	KindPermission     ErrorKind = "PERMISSION"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindServer         ErrorKind = "SERVER"
	KindConflict       ErrorKind = "CONFLICT"
	KindUnknown        ErrorKind = "UNKNOWN"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a session and none exists
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoRefreshToken is returned when a refresh is requested without a refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrNoMorePages is returned by LoadMore when the last page was already loaded
	ErrNoMorePages = errors.New("no more pages")

	// ErrInvalidQuery is returned when a search query fails sanitisation
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrMalformedEnvelope is returned when a backend payload does not match the envelope format
	ErrMalformedEnvelope = errors.New("malformed response envelope")

	// ErrStoreKeyNotFound is returned when a secure store has no value for a key
	ErrStoreKeyNotFound = errors.New("secure store key not found")

	// ErrCacheClosed is returned when a fetch is attempted on a closed cache
	ErrCacheClosed = errors.New("query cache closed")
)

// Error is the typed error surfaced by every engine operation.
// Payload holds the raw response body (if any) for diagnostics.
type Error struct {
	Kind       ErrorKind
	Message    string
	HTTPStatus int
	Errors     []string
	Payload    []byte
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, " (%d)", e.HTTPStatus)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Errors) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Errors, "; "))
		b.WriteString("]")
	}
	if e.Cause != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a typed error of the given kind
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf reports the kind of err. Context errors are reported as NETWORK,
// untyped errors as UNKNOWN.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// IsKind reports whether err is a typed error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus
	}
	return 0
}

// AsError converts any error into a typed *Error, keeping typed errors as they are
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindNetwork, Message: "request cancelled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindNetwork, Message: "request timed out", Cause: err}
	case errors.Is(err, ErrMalformedEnvelope), errors.Is(err, ErrInvalidQuery):
		return &Error{Kind: KindValidation, Message: err.Error(), Cause: err}
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrNoRefreshToken):
		return &Error{Kind: KindAuthentication, Message: err.Error(), Cause: err}
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Cause: err}
}
