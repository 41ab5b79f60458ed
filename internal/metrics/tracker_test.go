package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/storage"
)

type stubStars struct {
	count int
	err   error
	calls int
}

func (s *stubStars) FetchStars(ctx context.Context, repoURL string) (int, error) {
	s.calls++
	return s.count, s.err
}

type stubCites struct {
	count int
	err   error
	calls int
}

func (s *stubCites) FetchCitationCount(ctx context.Context, nativeID string) (int, error) {
	s.calls++
	return s.count, s.err
}

func trackedRecord(identity string) record.Record {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return record.Record{
		Identity:  identity,
		Title:     "Tracked Paper " + identity,
		Published: record.PublicationDate{Year: 2025},
		RepoURL:   "https://github.com/example/" + identity,
		Provenance: []record.Provenance{
			{Source: "academic", NativeID: "native-" + identity, FetchedAt: t0},
		},
		CreatedAt: t0,
		LastSeen:  t0,
	}
}

func newTestTracker(repo storage.Repository, stars StarsFetcher, cites CitationsFetcher) *Tracker {
	tr := NewTracker(repo, stars, cites, TrackerConfig{
		Weights:  DefaultWeights(),
		Ceilings: DefaultCeilings(),
	}, nil)
	tr.now = func() time.Time {
		return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	}
	return tr
}

func TestTrackerSnapshotsAndScores(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemory()
	if err := repo.UpsertRecord(ctx, trackedRecord("r1")); err != nil {
		t.Fatal(err)
	}

	tr := newTestTracker(repo, &stubStars{count: 120}, &stubCites{count: 30})
	stats, err := tr.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Records != 1 || stats.Snapshots != 2 {
		t.Errorf("stats = %+v, want 1 record, 2 snapshots written", stats)
	}

	snaps, err := repo.ListSnapshots(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want stars and citations", len(snaps))
	}
	for _, s := range snaps {
		if s.Date != "2026-03-10" {
			t.Errorf("snapshot date = %q, want 2026-03-10", s.Date)
		}
	}

	rec, err := repo.GetByIdentity(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Score == nil {
		t.Fatal("score not stored")
	}
	if rec.Score.Version != ScoreVersion {
		t.Errorf("score version = %d, want %d", rec.Score.Version, ScoreVersion)
	}
	if rec.Score.ComputedAt.IsZero() {
		t.Error("score computed-at not set")
	}
}

func TestTrackerSameDayRerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemory()
	if err := repo.UpsertRecord(ctx, trackedRecord("r1")); err != nil {
		t.Fatal(err)
	}

	tr := newTestTracker(repo, &stubStars{count: 120}, &stubCites{count: 30})
	for i, want := range []int{2, 0} {
		stats, err := tr.Run(ctx, nil)
		if err != nil {
			t.Fatalf("Run %d: %v", i+1, err)
		}
		if stats.Snapshots != want {
			t.Errorf("run %d snapshots = %d, want %d", i+1, stats.Snapshots, want)
		}
	}

	snaps, err := repo.ListSnapshots(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Errorf("snapshots = %d after same-day rerun, want 2", len(snaps))
	}
}

func TestTrackerLinkOnlyRecordWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemory()

	// Listed because of its source URL, but nothing is fetchable: no
	// repository link and no provenance the citations fetcher accepts.
	rec := record.Record{
		Identity:  "r1",
		Title:     "A Paper Without Metrics",
		Published: record.PublicationDate{Year: 2025},
		SourceURL: "https://papers.example.org/r1",
		Provenance: []record.Provenance{
			{Source: "conference", NativeID: "c1"},
		},
	}
	if err := repo.UpsertRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	stars := &stubStars{count: 10}
	cites := &stubCites{count: 5}
	tr := newTestTracker(repo, stars, cites)
	stats, err := tr.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Records != 1 || stats.Snapshots != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1 record walked and nothing written", stats)
	}
	if stars.calls != 0 || cites.calls != 0 {
		t.Errorf("fetchers called %d/%d times with nothing to fetch", stars.calls, cites.calls)
	}
}

func TestTrackerRecordsFailureAndContinues(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemory()
	for _, id := range []string{"bad", "good"} {
		if err := repo.UpsertRecord(ctx, trackedRecord(id)); err != nil {
			t.Fatal(err)
		}
	}
	// Fail the star fetch for one record only.
	stars := &stubStars{err: errors.New("repository vanished")}
	brokenURL := "https://github.com/example/bad"
	failing := &selectiveStars{failURL: brokenURL, inner: stars, good: 50}

	tr := newTestTracker(repo, failing, &stubCites{count: 10})
	stats, err := tr.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 || stats.Snapshots != 2 {
		t.Errorf("stats = %+v, want 1 failed, 2 snapshots from the healthy record", stats)
	}

	bad, err := repo.GetByIdentity(ctx, "bad")
	if err != nil {
		t.Fatal(err)
	}
	if bad.LastMetricsError == "" || bad.MetricFailures != 1 {
		t.Errorf("failure not recorded: error=%q failures=%d", bad.LastMetricsError, bad.MetricFailures)
	}

	good, err := repo.GetByIdentity(ctx, "good")
	if err != nil {
		t.Fatal(err)
	}
	if good.LastMetricsError != "" || good.MetricFailures != 0 {
		t.Errorf("healthy record polluted: error=%q failures=%d", good.LastMetricsError, good.MetricFailures)
	}
}

// selectiveStars fails for one URL and succeeds for the rest.
type selectiveStars struct {
	failURL string
	inner   *stubStars
	good    int
}

func (s *selectiveStars) FetchStars(ctx context.Context, repoURL string) (int, error) {
	if repoURL == s.failURL {
		return s.inner.FetchStars(ctx, repoURL)
	}
	return s.good, nil
}

func TestTrackerSkipsAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemory()
	rec := trackedRecord("r1")
	rec.MetricFailures = DefaultMaxFailures
	if err := repo.UpsertRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	stars := &stubStars{count: 10}
	tr := newTestTracker(repo, stars, nil)
	stats, err := tr.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
	if stars.calls != 0 {
		t.Errorf("fetcher called %d times for a skipped record", stars.calls)
	}
}

func TestTrackerSuccessClearsFailureCounter(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemory()
	rec := trackedRecord("r1")
	rec.MetricFailures = DefaultMaxFailures - 1
	rec.LastMetricsError = "previous outage"
	if err := repo.UpsertRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	tr := newTestTracker(repo, &stubStars{count: 10}, nil)
	if _, err := tr.Run(ctx, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := repo.GetByIdentity(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.MetricFailures != 0 || got.LastMetricsError != "" {
		t.Errorf("failure state not cleared: failures=%d error=%q",
			got.MetricFailures, got.LastMetricsError)
	}
}
