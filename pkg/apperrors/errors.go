// Package apperrors provides the error kinds reported by the Boa client.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrLogin             = errors.New("login failed")
	ErrLogout            = errors.New("logout failed")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrMalformedResponse = errors.New("malformed server response")
	ErrRemoteCall        = errors.New("remote call failed")
	ErrOutputFetch       = errors.New("output fetch failed")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Op       string // Remote procedure or operation that failed
	Key      string // Missing response key, for malformed responses
	Value    string // Offending raw value, for malformed responses
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Login creates a login failure with an explanation.
func Login(message string, cause error) error {
	return &Error{
		Sentinel: ErrLogin,
		Message:  message,
		Cause:    cause,
	}
}

// Logout creates a logout failure wrapping the server fault.
func Logout(cause error) error {
	return &Error{
		Sentinel: ErrLogout,
		Message:  cause.Error(),
		Cause:    cause,
	}
}

// NotLoggedIn is returned by protected operations attempted without a session.
func NotLoggedIn(op string) error {
	return &Error{
		Sentinel: ErrNotLoggedIn,
		Message:  "not logged in to the Boa API",
		Op:       op,
	}
}

// MissingKey reports a response record that lacks a required key.
func MissingKey(key string) error {
	return &Error{
		Sentinel: ErrMalformedResponse,
		Message:  fmt.Sprintf("invalid response from server: response does not contain key '%s'", key),
		Key:      key,
	}
}

// InvalidValue reports a response value that could not be converted.
func InvalidValue(kind, raw string, cause error) error {
	return &Error{
		Sentinel: ErrMalformedResponse,
		Message:  fmt.Sprintf("invalid %s '%s' from server", kind, raw),
		Value:    raw,
		Cause:    cause,
	}
}

// Malformed reports a response of an unexpected shape.
func Malformed(format string, args ...any) error {
	return &Error{
		Sentinel: ErrMalformedResponse,
		Message:  "invalid response from server: " + fmt.Sprintf(format, args...),
	}
}

// Remote wraps a server-reported fault (or transport failure) for a procedure.
func Remote(op string, cause error) error {
	return &Error{
		Sentinel: ErrRemoteCall,
		Message:  cause.Error(),
		Op:       op,
		Cause:    cause,
	}
}

// OutputFetch reports a failure retrieving job output. The message carries the
// offending URL or the underlying I/O message.
func OutputFetch(message string, cause error) error {
	return &Error{
		Sentinel: ErrOutputFetch,
		Message:  message,
		Cause:    cause,
	}
}

// InvalidConfig reports a rejected client configuration field.
func InvalidConfig(field, message string) error {
	return &Error{
		Sentinel: ErrInvalidConfig,
		Message:  message,
		Key:      field,
	}
}
