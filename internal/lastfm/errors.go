package lastfm

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an operation requires a session key.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrInvalidResponse is returned when the service answers with a body that
// cannot be parsed. Never retried.
var ErrInvalidResponse = errors.New("invalid response")

// ErrInvalidEndpoint is returned when the configured API endpoint cannot be
// used to build a request.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// APIError is the service error envelope: any response carrying an integer
// error code and a message, regardless of HTTP status.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lastfm: api error %d: %s", e.Code, e.Message)
}

// HTTPError is a non-200 response without an API error envelope.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("lastfm: http status %d", e.Status)
}

// Service error codes that invalidate the stored session. On any of these the
// pipeline must sign out and drop outstanding work.
const (
	codeAuthFailed     = 4  // authentication failed
	codeInvalidSession = 9  // session key invalid or expired
	codeInvalidAPIKey  = 10 // API key suspended or invalid
	codeLoginRequired  = 17 // user must be logged in
)

// Service error codes that signal a temporary condition worth retrying.
const (
	codeOperationFailed = 8  // backend failure, try again
	codeServiceOffline  = 11 // service temporarily offline
	codeTempUnavailable = 16 // service temporarily unavailable
	codeRateLimited     = 29 // rate limit exceeded
)

// IsAuthError reports whether err means the session is no longer valid.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case codeAuthFailed, codeInvalidSession, codeInvalidAPIKey, codeLoginRequired:
		return true
	}
	return false
}

// IsRetryable reports whether err is a transient failure worth retrying with
// backoff. Whitelisted API codes and server-side HTTP errors are retryable;
// malformed responses and endpoint misconfiguration are not; anything else is
// treated as a transport failure and retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeOperationFailed, codeServiceOffline, codeTempUnavailable, codeRateLimited:
			return true
		}
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500
	}

	if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrInvalidEndpoint) || errors.Is(err, ErrNotAuthenticated) {
		return false
	}

	// Transport-level failure (DNS, connection reset, timeout).
	return true
}
