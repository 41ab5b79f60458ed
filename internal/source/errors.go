package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common errors returned by source adapters.
var (
	// ErrNotFound indicates the resource was not found at the source.
	ErrNotFound = errors.New("not found at source")

	// ErrAuthError indicates an authentication error (missing/invalid key).
	ErrAuthError = errors.New("source authentication error")

	// ErrRateLimited indicates the source's rate limit was exceeded.
	ErrRateLimited = errors.New("source rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with source")

	// ErrInvalidResponse indicates an unexpected response shape.
	ErrInvalidResponse = errors.New("invalid response from source")
)

// APIError represents an HTTP-level error from a source API.
type APIError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

// IsTransient classifies errors the retry policy should absorb: rate
// limiting, network failures, timeouts, and 5xx responses. Timeouts are
// deliberately not a distinct class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) || errors.Is(err, ErrNetworkError) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 500
}
