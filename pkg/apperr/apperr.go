// Package apperr defines the typed failure values returned by the tenancy engine.
//
// Every expected failure (an expired license, an unknown invitation code, a full
// tenant) is an *Error carrying a Kind for programmatic handling and a Message that
// is safe to show to end users verbatim.
package apperr

import "errors"

// Kind classifies an error for callers and transports
type Kind string

const (
	KindInvalid         Kind = "invalid"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindForbidden       Kind = "forbidden"
	KindExpired         Kind = "expired"
	KindExhausted       Kind = "exhausted"
	KindUnauthenticated Kind = "unauthenticated"
)

// Error is a recognizable, user-presentable failure
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New creates a new Error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// As extracts the first *Error in err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" if err is not an *Error
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}

// CodeOf returns the code of err, or "" if err is not an *Error
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}
