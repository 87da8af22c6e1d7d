package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind identifies which pipeline stage produced an AuthError.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindMalformedToken    ErrorKind = "malformed_token"
	KindUnknownKey        ErrorKind = "unknown_key"
	KindInvalidToken      ErrorKind = "invalid_token"
	KindKeySetUnavailable ErrorKind = "key_set_unavailable"
	KindIdentity          ErrorKind = "identity"
	KindInternal          ErrorKind = "internal"
)

// AuthError is the only error type that crosses the package boundary.
// StatusCode is advisory and chosen by the stage that failed.
type AuthError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`

	kind ErrorKind
	err  error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error {
	return e.err
}

// Is matches any AuthError of the same kind, so callers can compare
// against the sentinels below with errors.Is.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

// Kind returns the stage classification of the error.
func (e *AuthError) Kind() ErrorKind {
	return e.kind
}

func newAuthError(kind ErrorKind, status int, message string, err error) *AuthError {
	return &AuthError{
		StatusCode: status,
		Message:    message,
		kind:       kind,
		err:        err,
	}
}

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrMissingCredential = &AuthError{kind: KindMissingCredential, StatusCode: http.StatusUnauthorized, Message: "missing credential"}
	ErrMalformedToken    = &AuthError{kind: KindMalformedToken, StatusCode: http.StatusInternalServerError, Message: "malformed token"}
	ErrUnknownKey        = &AuthError{kind: KindUnknownKey, StatusCode: http.StatusInternalServerError, Message: "unknown signing key"}
	ErrInvalidToken      = &AuthError{kind: KindInvalidToken, StatusCode: http.StatusUnauthorized, Message: "invalid token"}
	ErrKeySetUnavailable = &AuthError{kind: KindKeySetUnavailable, StatusCode: http.StatusInternalServerError, Message: "key set unavailable"}
	ErrIdentity          = &AuthError{kind: KindIdentity, StatusCode: http.StatusInternalServerError, Message: "identity mapping failed"}
)

// StatusCodes configures the status codes for the two key-resolution
// failures. Both are client-supplied-data problems but default to 500.
type StatusCodes struct {
	MalformedToken int
	UnknownKey     int
}

// DefaultStatusCodes returns the observed mapping (500 for both).
func DefaultStatusCodes() StatusCodes {
	return StatusCodes{
		MalformedToken: http.StatusInternalServerError,
		UnknownKey:     http.StatusInternalServerError,
	}
}

func (s StatusCodes) normalize() StatusCodes {
	if s.MalformedToken == 0 {
		s.MalformedToken = http.StatusInternalServerError
	}
	if s.UnknownKey == 0 {
		s.UnknownKey = http.StatusInternalServerError
	}
	return s
}

// AsAuthError returns err as an *AuthError. Errors of any other type are
// wrapped as a 500 so the caller always has something renderable.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return newAuthError(KindInternal, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", err), err)
}
