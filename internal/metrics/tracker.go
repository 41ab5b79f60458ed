package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/storage"
)

// DefaultMaxFailures is the consecutive-failure count after which a
// record is skipped instead of hammering a dead link every pass.
const DefaultMaxFailures = 5

// StarsFetcher fetches the current star count for a repository URL.
type StarsFetcher interface {
	FetchStars(ctx context.Context, repoURL string) (int, error)
}

// CitationsFetcher fetches the current citation count for a paper's
// source-native identifier.
type CitationsFetcher interface {
	FetchCitationCount(ctx context.Context, nativeID string) (int, error)
}

// Stats summarizes one tracker pass. Snapshots counts rows actually
// written, so a same-day rerun or a record with nothing fetchable
// reports zero rather than inflating the total.
type Stats struct {
	Records   int `json:"records"`
	Snapshots int `json:"snapshots"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Tracker ingests metric snapshots on a schedule and recomputes derived
// scores. Snapshot writes are idempotent upserts keyed by
// (record, metric, date), so re-running within the same day is a no-op.
type Tracker struct {
	repo  storage.Repository
	stars StarsFetcher
	cites CitationsFetcher
	log   *zap.Logger

	// citationsSource names the provenance entry whose native ID the
	// citations fetcher understands.
	citationsSource string

	weights     Weights
	ceilings    Ceilings
	maxFailures int
	listLimit   int
	now         func() time.Time
}

// TrackerConfig carries the tunable parts of a Tracker.
type TrackerConfig struct {
	Weights         Weights
	Ceilings        Ceilings
	MaxFailures     int
	ListLimit       int
	CitationsSource string
}

// NewTracker creates a tracker. Either fetcher may be nil, in which case
// that metric is simply not collected.
func NewTracker(repo storage.Repository, stars StarsFetcher, cites CitationsFetcher, cfg TrackerConfig, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 1000
	}
	if cfg.CitationsSource == "" {
		cfg.CitationsSource = "academic"
	}
	return &Tracker{
		repo:            repo,
		stars:           stars,
		cites:           cites,
		log:             log,
		citationsSource: cfg.CitationsSource,
		weights:         cfg.Weights,
		ceilings:        cfg.Ceilings,
		maxFailures:     cfg.MaxFailures,
		listLimit:       cfg.ListLimit,
		now:             time.Now,
	}
}

// Run executes one tracking pass over all records with external links.
// A failed fetch for one record never aborts the batch: the error is
// logged, recorded on the record, and the record is retried next pass
// until the consecutive-failure skip threshold is reached. The progress
// callback may be nil.
func (t *Tracker) Run(ctx context.Context, progress func(done, total int)) (Stats, error) {
	var stats Stats

	recs, err := t.repo.ListRecordsWithExternalLinks(ctx, t.listLimit)
	if err != nil {
		return stats, fmt.Errorf("listing records: %w", err)
	}

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Records++

		if rec.MetricFailures >= t.maxFailures {
			stats.Skipped++
		} else if written, err := t.trackRecord(ctx, rec); err != nil {
			t.log.Warn("metrics fetch failed",
				zap.String("identity", rec.Identity),
				zap.Error(err))
			if serr := t.repo.SetMetricsError(ctx, rec.Identity, err.Error()); serr != nil {
				return stats, fmt.Errorf("recording metrics error: %w", serr)
			}
			stats.Failed++
		} else {
			stats.Snapshots += written
		}

		if progress != nil {
			progress(i+1, len(recs))
		}
	}

	return stats, nil
}

// trackRecord snapshots every available metric for one record and
// recomputes its derived score. Returns how many snapshot rows were
// actually written; same-day duplicates and unfetchable metrics write
// none.
func (t *Tracker) trackRecord(ctx context.Context, rec record.Record) (int, error) {
	now := t.now().UTC()
	today := record.DateOf(now)
	written := 0

	if t.stars != nil && rec.RepoURL != "" {
		count, err := t.stars.FetchStars(ctx, rec.RepoURL)
		if err != nil {
			return written, fmt.Errorf("fetching stars: %w", err)
		}
		wrote, err := t.appendSnapshot(ctx, rec.Identity, record.MetricStars, today, count, now)
		if err != nil {
			return written, err
		}
		if wrote {
			written++
		}
	}

	if t.cites != nil {
		if nativeID := t.citationNativeID(rec); nativeID != "" {
			count, err := t.cites.FetchCitationCount(ctx, nativeID)
			if err != nil {
				return written, fmt.Errorf("fetching citation count: %w", err)
			}
			wrote, err := t.appendSnapshot(ctx, rec.Identity, record.MetricCitations, today, count, now)
			if err != nil {
				return written, err
			}
			if wrote {
				written++
			}
		}
	}

	// Clear any previous failure state before recomputing.
	if err := t.repo.SetMetricsError(ctx, rec.Identity, ""); err != nil {
		return written, fmt.Errorf("clearing metrics error: %w", err)
	}

	history, err := t.repo.ListSnapshots(ctx, rec.Identity)
	if err != nil {
		return written, fmt.Errorf("listing snapshots: %w", err)
	}

	score := Compute(history, rec.AgeDays(now), today, t.weights, t.ceilings)
	score.ComputedAt = now
	if err := t.repo.UpdateScore(ctx, rec.Identity, score); err != nil {
		return written, fmt.Errorf("updating score: %w", err)
	}

	return written, nil
}

// appendSnapshot writes one snapshot, treating same-day duplicates as a
// no-op rather than an error. Reports whether a row was written.
func (t *Tracker) appendSnapshot(ctx context.Context, identity, metric, date string, value int, observed time.Time) (bool, error) {
	s := record.MetricSnapshot{
		Identity:   identity,
		Metric:     metric,
		Date:       date,
		Value:      value,
		ObservedAt: observed,
	}
	if err := s.ValidateForCreate(); err != nil {
		return false, fmt.Errorf("invalid snapshot: %w", err)
	}
	switch err := t.repo.AppendSnapshot(ctx, s); {
	case errors.Is(err, storage.ErrSnapshotExists):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("appending snapshot: %w", err)
	}
	return true, nil
}

// citationNativeID returns the provenance native ID the citations
// fetcher can resolve, or "".
func (t *Tracker) citationNativeID(rec record.Record) string {
	for _, p := range rec.Provenance {
		if p.Source == t.citationsSource && p.NativeID != "" {
			return p.NativeID
		}
	}
	return ""
}
