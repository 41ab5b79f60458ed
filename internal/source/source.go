// Package source defines the per-external-source fetch-and-normalize
// boundary and the adapters that implement it.
package source

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/paperpulse/paperpulse/internal/record"
)

// Params are the generic fetch parameters a job passes to an adapter.
type Params struct {
	// Query is a free-text search query (academic index, repo search).
	Query string `json:"query,omitempty"`

	// NativeID addresses a single source-native object, e.g. the paper
	// whose references a citation-expansion fetch should return.
	NativeID string `json:"native_id,omitempty"`

	// From/To bound the fetch by publication date where supported.
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	// PageSize caps candidates per fetched page.
	PageSize int `json:"page_size,omitempty"`
}

// Page is one fetch result. Done signals the cursor is exhausted.
type Page struct {
	Candidates []record.Candidate
	NextCursor string
	Done       bool
}

// Adapter is the contract every external source implements. Adapters
// normalize raw records into candidates and respect their own rate
// budget; they never write to storage.
type Adapter interface {
	// Name identifies the source in provenance entries.
	Name() string

	// Fetch returns one page of candidates. An empty cursor starts from
	// the beginning; the returned cursor resumes after the page.
	Fetch(ctx context.Context, params Params, cursor string) (Page, error)

	// IsTransient classifies an error from Fetch: transient errors are
	// retried with backoff, terminal ones fail the sub-unit.
	IsTransient(err error) bool
}

// NewLimiter builds the shared per-source limiter from a requests-per-
// second budget. One limiter instance is shared by every job hitting the
// source, so concurrent jobs cannot collectively exceed the budget. It
// is injected rather than held in a package-level singleton so tests and
// deployments can tune it.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
