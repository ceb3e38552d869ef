package garmin

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsMissing is returned when no username/password is available.
	ErrCredentialsMissing = errors.New("garmin: missing credentials")

	// ErrNotAuthenticated is returned when an operation runs without a complete token pair.
	ErrNotAuthenticated = errors.New("garmin: not authenticated")

	// ErrSessionExpired is returned when the access token was rejected and the
	// single silent re-authentication did not recover the call.
	ErrSessionExpired = errors.New("garmin: session expired")

	// ErrTokenMissing is returned by ExportToken before any login or import.
	ErrTokenMissing = errors.New("garmin: token not found")

	// ErrInvalidArgument matches every *InvalidArgumentError via errors.Is.
	ErrInvalidArgument = errors.New("garmin: invalid argument")
)

// InvalidArgumentError reports a local validation failure. It is always
// raised before any network call.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("garmin: invalid argument %s: %s", e.Argument, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidArgument) hold.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalidArgument(argument, reason string) error {
	return &InvalidArgumentError{Argument: argument, Reason: reason}
}

// AuthFailure categorizes why the provider rejected a login.
type AuthFailure string

const (
	AuthFailureInvalidCredentials AuthFailure = "invalid_credentials"
	AuthFailureAccountLocked      AuthFailure = "account_locked"
	AuthFailureMFARequired        AuthFailure = "mfa_required"
	AuthFailureRejected           AuthFailure = "rejected"
	AuthFailureNetwork            AuthFailure = "network"
	AuthFailureUnexpected         AuthFailure = "unexpected"
)

// AuthenticationError is returned by Login when the handshake fails. The token
// store is left untouched.
type AuthenticationError struct {
	Category   AuthFailure
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := "garmin: authentication failed (" + string(e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RequestError is a non-2xx response that is not a token expiry.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("garmin: %s %s: unexpected status code %d", e.Method, e.URL, e.StatusCode)
}

// TransportError is a network-level failure (timeout, connection reset, ...).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("garmin: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
