package identity

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/storage"
)

// lockStripes is the size of the per-identity mutex pool.
const lockStripes = 64

// Resolver decides create-vs-merge for candidate records. Merges for the
// same identity are serialized through a striped lock so concurrent
// discovery of one paper from two sources cannot interleave and corrupt
// provenance; different identities proceed in parallel.
type Resolver struct {
	repo storage.Repository
	log  *zap.Logger

	locks [lockStripes]sync.Mutex
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo storage.Repository, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{repo: repo, log: log}
}

// Resolve computes the candidate's identity and inserts or merges it.
// It returns the stored record and whether a new record was created.
// Candidates without a usable title return ErrUnidentifiable.
func (r *Resolver) Resolve(ctx context.Context, cand record.Candidate) (record.Record, bool, error) {
	if err := cand.Validate(); err != nil {
		return record.Record{}, false, err
	}

	id, err := Compute(cand.Title, cand.Published.Year)
	if err != nil {
		return record.Record{}, false, err
	}

	lock := &r.locks[stripe(id)]
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.repo.GetByIdentity(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rec := newRecord(id, cand)
		if err := r.repo.UpsertRecord(ctx, rec); err != nil {
			return record.Record{}, false, fmt.Errorf("inserting record: %w", err)
		}
		r.log.Debug("record created",
			zap.String("identity", id),
			zap.String("source", cand.Source))
		return rec, true, nil
	case err != nil:
		return record.Record{}, false, fmt.Errorf("looking up identity: %w", err)
	}

	merged := Merge(existing, cand)
	if err := r.repo.UpsertRecord(ctx, merged); err != nil {
		return record.Record{}, false, fmt.Errorf("merging record: %w", err)
	}
	r.log.Debug("record merged",
		zap.String("identity", id),
		zap.String("source", cand.Source))
	return merged, false, nil
}

// newRecord builds a fresh record from a candidate.
func newRecord(id string, cand record.Candidate) record.Record {
	now := cand.FetchedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return record.Record{
		Identity:     id,
		Title:        cand.Title,
		Authors:      cand.Authors,
		Abstract:     record.NewExtracted(cand.Abstract),
		Published:    cand.Published,
		RepoURL:      cand.RepoURL,
		SourceURL:    cand.SourceURL,
		Bibliography: record.NewExtracted(cand.Bibliography),
		Provenance: []record.Provenance{{
			Source:    cand.Source,
			NativeID:  cand.NativeID,
			FetchedAt: now,
		}},
		CreatedAt: now,
		LastSeen:  now,
	}
}

// Merge folds a candidate into an existing record using a
// first-non-empty-wins policy per field. A populated field is never
// downgraded to empty, which makes the merge idempotent and insensitive
// to the order candidates arrive in.
func Merge(existing record.Record, cand record.Candidate) record.Record {
	merged := existing

	if merged.Title == "" {
		merged.Title = cand.Title
	}
	if len(merged.Authors) == 0 {
		merged.Authors = cand.Authors
	}
	if merged.Abstract.Value == "" && cand.Abstract != "" {
		merged.Abstract = record.NewExtracted(cand.Abstract)
	}
	if merged.Bibliography.Value == "" && cand.Bibliography != "" {
		merged.Bibliography = record.NewExtracted(cand.Bibliography)
	}
	if merged.RepoURL == "" {
		merged.RepoURL = cand.RepoURL
	}
	if merged.SourceURL == "" {
		merged.SourceURL = cand.SourceURL
	}
	if merged.Published.Month == 0 {
		merged.Published.Month = cand.Published.Month
	}
	if merged.Published.Day == 0 {
		merged.Published.Day = cand.Published.Day
	}

	fetched := cand.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}

	// Source-level upsert: one provenance entry per source. The slice is
	// copied first so the refresh never writes through a backing array
	// shared with the caller's record.
	merged.Provenance = append([]record.Provenance(nil), existing.Provenance...)
	updated := false
	for i := range merged.Provenance {
		if merged.Provenance[i].Source == cand.Source {
			merged.Provenance[i].NativeID = cand.NativeID
			merged.Provenance[i].FetchedAt = fetched
			updated = true
			break
		}
	}
	if !updated {
		merged.Provenance = append(merged.Provenance, record.Provenance{
			Source:    cand.Source,
			NativeID:  cand.NativeID,
			FetchedAt: fetched,
		})
	}

	if fetched.After(merged.LastSeen) {
		merged.LastSeen = fetched
	}

	return merged
}

// stripe maps an identity to a lock index.
func stripe(identity string) int {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return int(h.Sum32() % lockStripes)
}
