package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for the credential lifecycle. Callers match these with
// errors.Is; strategies wrap them in AuthError to carry the HTTP status.
var (
	// ErrNotAuthenticated indicates no usable credential is held: the session
	// never signed in, signed out, or the access token has expired.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthExpiringSoon indicates the access token is still usable but is
	// inside the expiry skew window. Raised only by strict checks.
	ErrAuthExpiringSoon = errors.New("authentication expiring soon")

	// ErrInvalidCredentials indicates the service rejected the email/password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEndpointNotFound indicates the authentication endpoint returned 404,
	// usually a sign of configuration drift.
	ErrEndpointNotFound = errors.New("authentication endpoint not found")

	// ErrUnexpectedResponse indicates a non-200 status outside the mapped set.
	ErrUnexpectedResponse = errors.New("unexpected authentication response")

	// ErrMalformedResponse indicates a 200 response missing the mandatory
	// token field.
	ErrMalformedResponse = errors.New("authentication response missing token")

	// ErrTokenRejected indicates the service returned 401 for a request that
	// passed local validity checks: the token was revoked remotely.
	ErrTokenRejected = errors.New("access token rejected by service")
)

// AuthError wraps a sign-in or refresh failure with the strategy that
// produced it and the HTTP status observed, if any.
type AuthError struct {
	Strategy string
	Status   int
	Err      error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%v", e.Err)
	if e.Strategy != "" {
		msg = e.Strategy + ": " + msg
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(strategy string, status int, err error) *AuthError {
	return &AuthError{Strategy: strategy, Status: status, Err: err}
}
