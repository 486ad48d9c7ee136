package auth

import (
	"errors"
)

// ErrorKind classifies authentication failures.
type ErrorKind string

const (
	// KindTokenExpired means the access token is past its expiry.
	KindTokenExpired ErrorKind = "TOKEN_EXPIRED"

	// KindRefreshFailed means a credential could not be renewed. Callers
	// should treat it as a terminal session failure.
	KindRefreshFailed ErrorKind = "REFRESH_FAILED"

	// KindUnauthenticated means no credential is available.
	KindUnauthenticated ErrorKind = "UNAUTHENTICATED"

	// KindSchemeError means a scheme could not produce its headers.
	KindSchemeError ErrorKind = "SCHEME_ERROR"
)

// Error is an authentication failure of a given kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError creates an Error. err may be nil.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoRefreshableScheme is returned when a refresh is requested but no
// configured scheme can refresh.
var ErrNoRefreshableScheme = NewError(KindRefreshFailed, "no refreshable scheme configured", nil)

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var authErr *Error
		if !errors.As(err, &authErr) {
			return false
		}
		if authErr.Kind == kind {
			return true
		}
		err = authErr.Err
	}
	return false
}
