// Package record defines the core domain types for discovered papers.
package record

import (
	"errors"
	"time"
)

// Record is the canonical stored representation of one discovered paper.
// Its Identity is immutable once assigned; enrichment mutates non-identity
// fields only. Records are never hard-deleted, only merged.
type Record struct {
	// Identity is the deterministic hash of normalized(title) + year.
	Identity string `json:"identity"`

	// Metadata
	Title    string         `json:"title"`
	Authors  []Author       `json:"authors"`
	Abstract ExtractedField `json:"abstract"`

	// Publication Date
	Published PublicationDate `json:"published"`

	// External links
	RepoURL   string `json:"repo_url,omitempty"`   // Code repository, tracked for stars
	SourceURL string `json:"source_url,omitempty"` // Page at the originating source

	// Free-text reference section, if a source supplied one.
	Bibliography ExtractedField `json:"bibliography"`

	// Provenance lists every source that has reported this paper.
	Provenance []Provenance `json:"provenance"`

	// Derived trend score, recomputed from snapshot history.
	Score *Score `json:"score,omitempty"`

	// Metrics fetch bookkeeping
	LastMetricsError string `json:"last_metrics_error,omitempty"`
	MetricFailures   int    `json:"metric_failures,omitempty"` // Consecutive failed passes

	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Author represents a paper author.
type Author struct {
	Name  string `json:"name"`
	ORCID string `json:"orcid,omitempty"`
}

// PublicationDate represents a publication date with optional month and day.
type PublicationDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"` // 1-12, 0 if unknown
	Day   int `json:"day,omitempty"`   // 1-31, 0 if unknown
}

// Provenance tracks one source that reported a record.
type Provenance struct {
	Source    string    `json:"source"`    // Adapter name, e.g. "academic"
	NativeID  string    `json:"native_id"` // Source's own identifier
	FetchedAt time.Time `json:"fetched_at"`
}

// VerificationStatus is the review state of a machine-extracted field.
// Extracted values carry no confidence score, so consumers must branch
// on status instead of trusting the value implicitly.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// ExtractedField is a tagged value for fields populated by automated
// extraction rather than authoritative metadata.
type ExtractedField struct {
	Value  string             `json:"value,omitempty"`
	Status VerificationStatus `json:"status,omitempty"`
}

// NewExtracted wraps a value as a pending extracted field.
// An empty value yields the zero field.
func NewExtracted(value string) ExtractedField {
	if value == "" {
		return ExtractedField{}
	}
	return ExtractedField{Value: value, Status: VerificationPending}
}

// Usable reports whether the field holds a value consumers may read.
func (f ExtractedField) Usable() bool {
	return f.Value != "" && f.Status != VerificationRejected
}

// Candidate is the normalized shape every source adapter produces.
// The identity resolver turns candidates into new or merged Records.
type Candidate struct {
	Title        string          `json:"title"`
	Authors      []Author        `json:"authors,omitempty"`
	Abstract     string          `json:"abstract,omitempty"`
	Published    PublicationDate `json:"published"`
	RepoURL      string          `json:"repo_url,omitempty"`
	SourceURL    string          `json:"source_url,omitempty"`
	Bibliography string          `json:"bibliography,omitempty"`

	Source    string    `json:"source"`
	NativeID  string    `json:"native_id"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Validation errors.
var (
	ErrNoSource = errors.New("candidate source is required")
)

// Validate checks that a candidate carries the fields the resolver needs.
// Title/year sufficiency is the resolver's concern; this only checks shape.
func (c *Candidate) Validate() error {
	if c.Source == "" {
		return ErrNoSource
	}
	return nil
}

// HasSource reports whether the record already lists the given source.
func (r *Record) HasSource(source string) bool {
	for _, p := range r.Provenance {
		if p.Source == source {
			return true
		}
	}
	return false
}

// NativeIDFor returns the record's native ID at the first of the given
// sources that has reported it, or "" when none has.
func (r *Record) NativeIDFor(sources ...string) string {
	for _, s := range sources {
		for _, p := range r.Provenance {
			if p.Source == s && p.NativeID != "" {
				return p.NativeID
			}
		}
	}
	return ""
}

// AgeDays returns the whole days elapsed since the record was first created.
func (r *Record) AgeDays(now time.Time) int {
	if r.CreatedAt.IsZero() || now.Before(r.CreatedAt) {
		return 0
	}
	return int(now.Sub(r.CreatedAt).Hours() / 24)
}
