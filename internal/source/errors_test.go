package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", ErrRateLimited, true},
		{"wrapped rate limited", fmt.Errorf("fetching: %w", ErrRateLimited), true},
		{"network error", ErrNetworkError, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"server error", &APIError{Source: "academic", StatusCode: 500}, true},
		{"bad gateway", &APIError{Source: "academic", StatusCode: 502}, true},
		{"api rate limit status", &APIError{Source: "academic", StatusCode: 429}, true},
		{"not found", ErrNotFound, false},
		{"auth error", ErrAuthError, false},
		{"invalid response", ErrInvalidResponse, false},
		{"client error", &APIError{Source: "academic", StatusCode: 400}, false},
		{"cancelled", context.Canceled, false},
		{"arbitrary", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrNotFound) {
		t.Error("sentinel not recognized")
	}
	if !IsNotFound(&APIError{Source: "academic", StatusCode: 404}) {
		t.Error("404 API error not recognized")
	}
	if IsNotFound(ErrRateLimited) {
		t.Error("rate limit misclassified as not found")
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(fmt.Errorf("wrapped: %w", ErrRateLimited)) {
		t.Error("wrapped sentinel not recognized")
	}
	if !IsRateLimited(&APIError{Source: "repometrics", StatusCode: 429}) {
		t.Error("429 API error not recognized")
	}
	if IsRateLimited(ErrNotFound) {
		t.Error("not-found misclassified as rate limited")
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Source: "academic", StatusCode: 503, Message: "503 Service Unavailable"}
	want := "academic API error (status 503): 503 Service Unavailable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
