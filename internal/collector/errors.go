package collector

import (
	"errors"
	"fmt"
)

// AuthError is returned when the API rejects the token (HTTP 401/403).
// It is never retried.
type AuthError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// NetworkError covers transport failures, timeouts and unexpected statuses.
type NetworkError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("network timeout at %s: %v", e.Endpoint, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("network error (%d) at %s: %v", e.StatusCode, e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("network error at %s: %v", e.Endpoint, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError means the body could not be turned into a series.
type MalformedResponseError struct {
	Endpoint string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsAuthError reports whether err carries an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsTransient reports whether err is a failure the cache can cover for.
func IsTransient(err error) bool {
	if err == nil || IsAuthError(err) {
		return false
	}
	return true
}
