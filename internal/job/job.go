// Package job orchestrates units of background work (crawl, enrich,
// match, track) with bounded concurrency, retries, and status reporting.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a unit of orchestration work.
type Kind string

const (
	KindCrawl  Kind = "crawl"  // Fetch candidates from a source and merge them
	KindEnrich Kind = "enrich" // Pull reference lists for known records
	KindMatch  Kind = "match"  // Resolve bibliography entries into edges
	KindTrack  Kind = "track"  // Snapshot external metrics and rescore
)

// State is the lifecycle state of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether a state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Params are the submission parameters of a job.
type Params struct {
	// Source selects the adapter for crawl jobs.
	Source string `json:"source,omitempty"`

	// Query is passed through to the adapter.
	Query string `json:"query,omitempty"`

	// NativeID addresses a single source-native object.
	NativeID string `json:"native_id,omitempty"`

	// Identity restricts a match or enrich job to one record.
	Identity string `json:"identity,omitempty"`

	// Limit bounds rematch passes.
	Limit int `json:"limit,omitempty"`

	// PageSize caps candidates per fetched page.
	PageSize int `json:"page_size,omitempty"`
}

// Progress is the current/total sub-unit counter of a running job.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Counts aggregates sub-unit outcomes so job status is an inspectable
// summary rather than a single pass/fail bit.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Status is the externally visible snapshot of a job.
type Status struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Params     Params    `json:"params"`
	State      State     `json:"state"`
	Progress   Progress  `json:"progress"`
	Counts     Counts    `json:"counts"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Job is one orchestrated unit of work. All mutation goes through the
// orchestrator; readers get consistent snapshots via Status().
type Job struct {
	mu sync.Mutex

	id     string
	kind   Kind
	params Params

	state    State
	progress Progress
	counts   Counts
	errMsg   string

	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	cancel          context.CancelFunc
	cancelRequested bool
}

// Transition errors.
var (
	ErrNotFound      = errors.New("job not found")
	ErrAlreadyDone   = errors.New("job already in a terminal state")
	ErrUnknownKind   = errors.New("unknown job kind")
	ErrUnknownSource = errors.New("no adapter registered for source")
)

// newJob creates a queued job.
func newJob(kind Kind, params Params, cancel context.CancelFunc) *Job {
	return &Job{
		id:        uuid.NewString(),
		kind:      kind,
		params:    params,
		state:     StateQueued,
		createdAt: time.Now().UTC(),
		cancel:    cancel,
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Status returns a consistent snapshot of the job.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{
		ID:         j.id,
		Kind:       j.kind,
		Params:     j.params,
		State:      j.state,
		Progress:   j.progress,
		Counts:     j.counts,
		Error:      j.errMsg,
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
}

// markRunning transitions Queued -> Running.
func (j *Job) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateQueued {
		j.state = StateRunning
		j.startedAt = time.Now().UTC()
	}
}

// finish moves the job to a terminal state. Later calls are ignored so a
// cancellation racing completion settles on whichever lands first.
func (j *Job) finish(state State, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = state
	j.errMsg = errMsg
	j.finishedAt = time.Now().UTC()
}

// requestCancel flags the job for cooperative cancellation and cancels
// its context. In-flight sub-units finish; no further ones start.
func (j *Job) requestCancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return ErrAlreadyDone
	}
	j.cancelRequested = true
	if j.cancel != nil {
		j.cancel()
	}
	return nil
}

// wasCancelRequested reports whether an operator asked for cancellation.
func (j *Job) wasCancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

// addTotal grows the known sub-unit total.
func (j *Job) addTotal(n int) {
	j.mu.Lock()
	j.progress.Total += n
	j.mu.Unlock()
}

// setProgress overwrites the progress counters.
func (j *Job) setProgress(done, total int) {
	j.mu.Lock()
	j.progress = Progress{Done: done, Total: total}
	j.mu.Unlock()
}

// step records the outcome of one sub-unit and advances progress.
func (j *Job) step(outcome func(*Counts)) {
	j.mu.Lock()
	outcome(&j.counts)
	j.progress.Done++
	j.mu.Unlock()
}

// setCounts overwrites the aggregate counts (for kinds whose component
// reports totals itself).
func (j *Job) setCounts(c Counts) {
	j.mu.Lock()
	j.counts = c
	j.mu.Unlock()
}
