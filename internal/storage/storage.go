// Package storage handles durable state behind a narrow repository interface.
// The pipeline core only touches this boundary; implementations are the
// SQLite store and an in-memory store used by tests.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/paperpulse/paperpulse/internal/record"
)

// Common errors returned by repository implementations.
var (
	// ErrNotFound indicates no record exists for the identity.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEdge indicates the citation edge already exists.
	ErrDuplicateEdge = errors.New("citation edge already exists")

	// ErrSnapshotExists indicates a snapshot is already stored for the
	// (identity, metric, date) key. Callers treat this as a no-op.
	ErrSnapshotExists = errors.New("snapshot already exists")
)

// Repository is the only boundary the pipeline touches for durable state.
// Every write is a complete idempotent upsert so cooperative cancellation
// can never leave a half-written record behind.
type Repository interface {
	// GetByIdentity returns the record for an identity, or ErrNotFound.
	GetByIdentity(ctx context.Context, identity string) (record.Record, error)

	// UpsertRecord writes the full record state keyed by identity.
	UpsertRecord(ctx context.Context, rec record.Record) error

	// ListCandidatesForMatching returns records for citation matching.
	// A non-zero year bounds the candidate set to that publication year;
	// year 0 scans the whole corpus (callers use this only when the
	// corpus is small or the entry has no parsable year).
	ListCandidatesForMatching(ctx context.Context, year, limit int) ([]record.Record, error)

	// ListRecordsWithExternalLinks returns records carrying a repository
	// or source link, for the metrics tracker's scheduled pass.
	ListRecordsWithExternalLinks(ctx context.Context, limit int) ([]record.Record, error)

	// SearchRecords returns records whose title contains the query,
	// case-insensitively, most recently seen first.
	SearchRecords(ctx context.Context, query string, limit int) ([]record.Record, error)

	// AppendCitationEdge appends an edge, or returns ErrDuplicateEdge.
	AppendCitationEdge(ctx context.Context, e record.CitationEdge) error

	// ListCitationEdges returns all edges citing from or cited by the identity.
	ListCitationEdges(ctx context.Context, identity string) ([]record.CitationEdge, error)

	// AppendSnapshot appends a snapshot, or returns ErrSnapshotExists.
	AppendSnapshot(ctx context.Context, s record.MetricSnapshot) error

	// ListSnapshots returns the full snapshot history for an identity,
	// ordered by date ascending.
	ListSnapshots(ctx context.Context, identity string) ([]record.MetricSnapshot, error)

	// UpdateScore stores the derived score with its components.
	UpdateScore(ctx context.Context, identity string, score record.Score) error

	// SetMetricsError records a failed metrics fetch; an empty message
	// clears the error and resets the consecutive-failure counter.
	SetMetricsError(ctx context.Context, identity, msg string) error

	// SaveUnmatchedReference stores a bibliography entry that found no
	// match. An entry already stored for the same (citing, raw text)
	// pair is a no-op.
	SaveUnmatchedReference(ctx context.Context, u record.UnmatchedReference) error

	// ListUnmatchedReferences returns stored unmatched entries for rematching.
	ListUnmatchedReferences(ctx context.Context, limit int) ([]record.UnmatchedReference, error)

	// DeleteUnmatchedReference removes an unmatched entry once it has matched.
	DeleteUnmatchedReference(ctx context.Context, id int64) error

	// SaveJobAudit retains a job's terminal state for audit.
	SaveJobAudit(ctx context.Context, a JobAudit) error

	// GetJobAudit returns the persisted trace of a finished job, or
	// ErrNotFound while the job is still running or unknown.
	GetJobAudit(ctx context.Context, id string) (JobAudit, error)
}

// JobAudit is the durable trace of an orchestrated job. Jobs live in the
// orchestrator while running; terminal states are persisted here.
type JobAudit struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Params     string    `json:"params,omitempty"` // JSON-encoded submission params
	State      string    `json:"state"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
