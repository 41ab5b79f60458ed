package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/paperpulse/paperpulse/internal/citation"
	"github.com/paperpulse/paperpulse/internal/identity"
	"github.com/paperpulse/paperpulse/internal/metrics"
	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/source"
	"github.com/paperpulse/paperpulse/internal/storage"
)

// DefaultRematchLimit bounds one lazy rematch pass.
const DefaultRematchLimit = 1000

// Orchestrator composes the pipeline components and executes jobs on a
// fixed-size worker pool. Per-source concurrency is capped by each
// adapter's own rate limiter, not by the pool size alone.
type Orchestrator struct {
	repo     storage.Repository
	resolver *identity.Resolver
	matcher  *citation.Matcher
	tracker  *metrics.Tracker
	adapters map[string]source.Adapter
	retry    RetryPolicy
	log      *zap.Logger

	sem *semaphore.Weighted

	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewOrchestrator wires the pipeline together. Adapters are keyed by
// their Name(); workers bounds concurrent job execution.
func NewOrchestrator(
	repo storage.Repository,
	resolver *identity.Resolver,
	matcher *citation.Matcher,
	tracker *metrics.Tracker,
	adapters []source.Adapter,
	workers int,
	retry RetryPolicy,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	byName := make(map[string]source.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Orchestrator{
		repo:     repo,
		resolver: resolver,
		matcher:  matcher,
		tracker:  tracker,
		adapters: byName,
		retry:    retry,
		log:      log,
		sem:      semaphore.NewWeighted(int64(workers)),
		jobs:     make(map[string]*Job),
	}
}

// SubmitJob validates the submission and queues a job. Configuration
// problems (unknown kind, unregistered source) fail here, before any
// external call is made.
func (o *Orchestrator) SubmitJob(ctx context.Context, kind Kind, params Params) (string, error) {
	switch kind {
	case KindCrawl:
		if _, ok := o.adapters[params.Source]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownSource, params.Source)
		}
	case KindEnrich:
		if _, ok := o.adapters[source.CitationSourceName]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownSource, source.CitationSourceName)
		}
	case KindMatch, KindTrack:
		// No per-source configuration to check.
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := newJob(kind, params, cancel)

	o.mu.Lock()
	o.jobs[j.id] = j
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(jobCtx, j)
	}()

	o.log.Info("job submitted",
		zap.String("job_id", j.id),
		zap.String("kind", string(kind)))
	return j.id, nil
}

// GetJobStatus returns the status snapshot for a job ID.
func (o *Orchestrator) GetJobStatus(id string) (Status, error) {
	o.mu.Lock()
	j, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return Status{}, ErrNotFound
	}
	return j.Status(), nil
}

// CancelJob requests cooperative cancellation: the in-flight sub-unit
// finishes, no further sub-units start, and the job settles in
// StateCancelled with its progress frozen.
func (o *Orchestrator) CancelJob(id string) error {
	o.mu.Lock()
	j, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return j.requestCancel()
}

// Wait blocks until all submitted jobs have finished. Used by the CLI
// and by tests; services typically poll status instead.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute runs one job to a terminal state on the worker pool.
func (o *Orchestrator) execute(ctx context.Context, j *Job) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		j.finish(StateCancelled, "")
		o.persistAudit(j)
		return
	}
	defer o.sem.Release(1)

	j.markRunning()

	var err error
	switch j.Status().Kind {
	case KindCrawl:
		err = o.runCrawl(ctx, j)
	case KindEnrich:
		err = o.runEnrich(ctx, j)
	case KindMatch:
		err = o.runMatch(ctx, j)
	case KindTrack:
		err = o.runTrack(ctx, j)
	}

	switch {
	case j.wasCancelRequested():
		j.finish(StateCancelled, "")
	case errors.Is(err, context.Canceled):
		j.finish(StateCancelled, "")
	case err != nil:
		j.finish(StateFailed, err.Error())
		o.log.Warn("job failed",
			zap.String("job_id", j.id),
			zap.Error(err))
	default:
		j.finish(StateSucceeded, "")
	}

	o.persistAudit(j)
}

// runCrawl pages through a source adapter, merging candidates into the
// corpus and matching any bibliography text they carry. Malformed
// candidates are skipped; transient fetch errors are retried; exhausted
// retries fail the job with the transient error as detail.
func (o *Orchestrator) runCrawl(ctx context.Context, j *Job) error {
	status := j.Status()
	adapter := o.adapters[status.Params.Source]

	params := source.Params{
		Query:    status.Params.Query,
		NativeID: status.Params.NativeID,
		PageSize: status.Params.PageSize,
	}

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var page source.Page
		err := o.retry.Do(ctx, adapter.IsTransient, func() error {
			p, ferr := adapter.Fetch(ctx, params, cursor)
			if ferr == nil {
				page = p
			}
			return ferr
		})
		if err != nil {
			return fmt.Errorf("fetching from %s: %w", status.Params.Source, err)
		}

		j.addTotal(len(page.Candidates))
		for _, cand := range page.Candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.ingest(ctx, j, cand); err != nil {
				return err
			}
		}

		if page.Done {
			return nil
		}
		cursor = page.NextCursor
	}
}

// ingest merges one candidate and matches its bibliography. Malformed
// input is skipped at candidate granularity and never aborts the batch.
func (o *Orchestrator) ingest(ctx context.Context, j *Job, cand record.Candidate) error {
	rec, _, err := o.resolver.Resolve(ctx, cand)
	switch {
	case errors.Is(err, identity.ErrUnidentifiable) || errors.Is(err, record.ErrNoSource):
		o.log.Warn("skipping malformed candidate",
			zap.String("source", cand.Source),
			zap.String("native_id", cand.NativeID),
			zap.Error(err))
		j.step(func(c *Counts) { c.Skipped++ })
		return nil
	case err != nil:
		// Storage failures fail the job; committed upserts stay intact.
		return err
	}

	if rec.Bibliography.Usable() {
		if _, err := o.matcher.MatchRecord(ctx, rec); err != nil {
			return err
		}
	}

	j.step(func(c *Counts) { c.Succeeded++ })
	return nil
}

// runEnrich pulls reference lists for known records, merging each
// referenced paper into the corpus and picking up the citing record's
// raw bibliography along the way. Without an identity it walks the
// corpus and enriches records that still lack a usable bibliography;
// with one it re-enriches that record unconditionally.
func (o *Orchestrator) runEnrich(ctx context.Context, j *Job) error {
	adapter := o.adapters[source.CitationSourceName]
	status := j.Status()

	var recs []record.Record
	if id := status.Params.Identity; id != "" {
		rec, err := o.repo.GetByIdentity(ctx, id)
		if err != nil {
			return fmt.Errorf("loading record %s: %w", id, err)
		}
		if rec.NativeIDFor(source.AcademicSourceName, source.CitationSourceName) == "" {
			return fmt.Errorf("record %s has no reference-capable source", id)
		}
		recs = []record.Record{rec}
	} else {
		limit := status.Params.Limit
		if limit <= 0 {
			limit = DefaultRematchLimit
		}
		var err error
		recs, err = o.repo.ListCandidatesForMatching(ctx, 0, limit)
		if err != nil {
			return err
		}
	}

	targeted := status.Params.Identity != ""
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		nativeID := rec.NativeIDFor(source.AcademicSourceName, source.CitationSourceName)
		if nativeID == "" || (rec.Bibliography.Usable() && !targeted) {
			continue
		}
		if err := o.expandReferences(ctx, j, adapter, nativeID); err != nil {
			return err
		}
	}
	return nil
}

// expandReferences pages through one record's reference list.
func (o *Orchestrator) expandReferences(ctx context.Context, j *Job, adapter source.Adapter, nativeID string) error {
	params := source.Params{NativeID: nativeID}
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var page source.Page
		err := o.retry.Do(ctx, adapter.IsTransient, func() error {
			p, ferr := adapter.Fetch(ctx, params, cursor)
			if ferr == nil {
				page = p
			}
			return ferr
		})
		if err != nil {
			return fmt.Errorf("expanding references of %s: %w", nativeID, err)
		}

		j.addTotal(len(page.Candidates))
		for _, cand := range page.Candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.ingest(ctx, j, cand); err != nil {
				return err
			}
		}

		if page.Done {
			return nil
		}
		cursor = page.NextCursor
	}
}

// runMatch re-resolves bibliography entries: one record when an identity
// is given, otherwise a lazy pass over stored unmatched references.
func (o *Orchestrator) runMatch(ctx context.Context, j *Job) error {
	status := j.Status()

	var stats citation.Stats
	if id := status.Params.Identity; id != "" {
		rec, err := o.repo.GetByIdentity(ctx, id)
		if err != nil {
			return fmt.Errorf("loading record %s: %w", id, err)
		}
		if stats, err = o.matcher.MatchRecord(ctx, rec); err != nil {
			return err
		}
	} else {
		limit := status.Params.Limit
		if limit <= 0 {
			limit = DefaultRematchLimit
		}
		var err error
		if stats, err = o.matcher.RematchUnmatched(ctx, limit); err != nil {
			return err
		}
	}

	j.setProgress(stats.Entries, stats.Entries)
	j.setCounts(Counts{
		Succeeded: stats.Matched,
		Skipped:   stats.Skipped + stats.Unmatched,
	})
	return nil
}

// runTrack executes one metrics tracker pass.
func (o *Orchestrator) runTrack(ctx context.Context, j *Job) error {
	stats, err := o.tracker.Run(ctx, j.setProgress)
	j.setCounts(Counts{
		Succeeded: stats.Snapshots,
		Skipped:   stats.Skipped,
		Failed:    stats.Failed,
	})
	return err
}

// persistAudit retains the job's terminal state for later inspection.
func (o *Orchestrator) persistAudit(j *Job) {
	s := j.Status()
	paramsJSON, _ := json.Marshal(s.Params)

	audit := storage.JobAudit{
		ID:         s.ID,
		Kind:       string(s.Kind),
		Params:     string(paramsJSON),
		State:      string(s.State),
		Done:       s.Progress.Done,
		Total:      s.Progress.Total,
		Succeeded:  s.Counts.Succeeded,
		Skipped:    s.Counts.Skipped,
		Failed:     s.Counts.Failed,
		Error:      s.Error,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.repo.SaveJobAudit(ctx, audit); err != nil {
		o.log.Warn("persisting job audit failed",
			zap.String("job_id", s.ID),
			zap.Error(err))
	}
}
