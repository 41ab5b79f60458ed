package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperpulse/paperpulse/internal/record"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(identity string) record.Record {
	t0 := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	return record.Record{
		Identity: identity,
		Title:    "Paper " + identity,
		Authors: []record.Author{
			{Name: "Ada Lovelace", ORCID: "0000-0001"},
			{Name: "Alan Turing"},
		},
		Abstract:  record.NewExtracted("An abstract about computation."),
		Published: record.PublicationDate{Year: 2024, Month: 6, Day: 15},
		RepoURL:   "https://github.com/example/" + identity,
		SourceURL: "https://papers.example.org/" + identity,
		Provenance: []record.Provenance{
			{Source: "academic", NativeID: "native-" + identity, FetchedAt: t0},
		},
		CreatedAt: t0,
		LastSeen:  t0,
	}
}

func TestUpsertAndGetRecord(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	want := sampleRecord("r1")
	require.NoError(t, db.UpsertRecord(ctx, want))

	got, err := db.GetByIdentity(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Authors, got.Authors)
	assert.Equal(t, want.Abstract, got.Abstract)
	assert.Equal(t, want.Published, got.Published)
	assert.Equal(t, want.Provenance, got.Provenance)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.True(t, got.LastSeen.Equal(want.LastSeen))
	assert.Nil(t, got.Score)
}

func TestGetMissingRecord(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetByIdentity(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := sampleRecord("r1")
	require.NoError(t, db.UpsertRecord(ctx, rec))

	// A later write updates everything except the creation timestamp.
	updated := rec
	updated.Title = "Revised Title for Paper r1"
	updated.CreatedAt = rec.CreatedAt.Add(48 * time.Hour)
	updated.LastSeen = rec.LastSeen.Add(48 * time.Hour)
	require.NoError(t, db.UpsertRecord(ctx, updated))

	got, err := db.GetByIdentity(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Revised Title for Paper r1", got.Title)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt), "created_at must not move on update")
	assert.True(t, got.LastSeen.Equal(updated.LastSeen))
}

func TestListCandidatesForMatching(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r2020 := sampleRecord("a")
	r2020.Published.Year = 2020
	r2021 := sampleRecord("b")
	r2021.Published.Year = 2021
	for _, rec := range []record.Record{r2020, r2021} {
		require.NoError(t, db.UpsertRecord(ctx, rec))
	}

	got, err := db.ListCandidatesForMatching(ctx, 2020, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Identity)

	all, err := db.ListCandidatesForMatching(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListRecordsWithExternalLinks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	linked := sampleRecord("linked")
	bare := sampleRecord("bare")
	bare.RepoURL = ""
	bare.SourceURL = ""
	for _, rec := range []record.Record{linked, bare} {
		require.NoError(t, db.UpsertRecord(ctx, rec))
	}

	got, err := db.ListRecordsWithExternalLinks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "linked", got[0].Identity)
}

func TestAppendCitationEdgeDuplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	edge := record.CitationEdge{
		CitingID:   "citing",
		CitedID:    "cited",
		RefText:    "Smith, J. (2020). Some Paper Title.",
		Confidence: 92,
		Method:     record.MethodFuzzyTitleYear,
		CreatedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.AppendCitationEdge(ctx, edge))
	assert.ErrorIs(t, db.AppendCitationEdge(ctx, edge), ErrDuplicateEdge)

	// Both directions are visible.
	for _, id := range []string{"citing", "cited"} {
		edges, err := db.ListCitationEdges(ctx, id)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	}
}

func TestAppendCitationEdgeValidation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.AppendCitationEdge(ctx, record.CitationEdge{
		CitingID: "same", CitedID: "same", Method: record.MethodFuzzyTitleYear,
	})
	assert.ErrorIs(t, err, record.ErrSelfEdge)
}

func TestAppendSnapshotIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := record.MetricSnapshot{
		Identity:   "r1",
		Metric:     record.MetricStars,
		Date:       "2026-03-10",
		Value:      120,
		ObservedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.AppendSnapshot(ctx, s))

	// Same key, different value: the stored observation is immutable.
	s.Value = 999
	assert.ErrorIs(t, db.AppendSnapshot(ctx, s), ErrSnapshotExists)

	snaps, err := db.ListSnapshots(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 120, snaps[0].Value)
}

func TestListSnapshotsOrdered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	observed := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, date := range []string{"2026-03-10", "2026-03-03", "2026-03-07"} {
		require.NoError(t, db.AppendSnapshot(ctx, record.MetricSnapshot{
			Identity: "r1", Metric: record.MetricStars, Date: date, Value: 1, ObservedAt: observed,
		}))
	}

	snaps, err := db.ListSnapshots(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "2026-03-03", snaps[0].Date)
	assert.Equal(t, "2026-03-10", snaps[2].Date)
}

func TestUpdateScore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertRecord(ctx, sampleRecord("r1")))

	score := record.Score{
		Value: 0.42,
		Components: record.ScoreComponents{
			StarsGrowth: 0.5, CitationsGrowth: 0.25, Absolute: 0.1, Recency: 0.9,
		},
		Version:    1,
		ComputedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.UpdateScore(ctx, "r1", score))

	got, err := db.GetByIdentity(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, score.Value, got.Score.Value)
	assert.Equal(t, score.Components, got.Score.Components)

	assert.ErrorIs(t, db.UpdateScore(ctx, "missing", score), ErrNotFound)
}

func TestSetMetricsError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertRecord(ctx, sampleRecord("r1")))

	require.NoError(t, db.SetMetricsError(ctx, "r1", "fetch timed out"))
	require.NoError(t, db.SetMetricsError(ctx, "r1", "fetch timed out"))
	got, err := db.GetByIdentity(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MetricFailures)
	assert.Equal(t, "fetch timed out", got.LastMetricsError)

	require.NoError(t, db.SetMetricsError(ctx, "r1", ""))
	got, err = db.GetByIdentity(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, got.MetricFailures)
	assert.Empty(t, got.LastMetricsError)
}

func TestUnmatchedReferenceLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, text := range []string{"first raw reference text", "second raw reference text"} {
		require.NoError(t, db.SaveUnmatchedReference(ctx, record.UnmatchedReference{
			CitingID:  "citing",
			RawText:   text,
			Title:     "parsed title words",
			Year:      2021,
			CreatedAt: created,
		}))
	}

	refs, err := db.ListUnmatchedReferences(ctx, 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "first raw reference text", refs[0].RawText, "oldest first")
	assert.NotZero(t, refs[0].ID)

	require.NoError(t, db.DeleteUnmatchedReference(ctx, refs[0].ID))
	refs, err = db.ListUnmatchedReferences(ctx, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "second raw reference text", refs[0].RawText)
}

func TestSaveUnmatchedReferenceDeduplicates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ref := record.UnmatchedReference{
		CitingID:  "citing",
		RawText:   "Doe, A. (2021). A Paper Nobody Stores. Journal.",
		Title:     "a paper nobody stores",
		Year:      2021,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, db.SaveUnmatchedReference(ctx, ref))
	}

	// Same raw text from a different citing record is a distinct entry.
	other := ref
	other.CitingID = "other-citing"
	require.NoError(t, db.SaveUnmatchedReference(ctx, other))

	refs, err := db.ListUnmatchedReferences(ctx, 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "citing", refs[0].CitingID)
	assert.Equal(t, "other-citing", refs[1].CitingID)
}

func TestSaveJobAuditUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	audit := JobAudit{
		ID:         "job-1",
		Kind:       "crawl",
		Params:     `{"source":"academic"}`,
		State:      "failed",
		Done:       3,
		Total:      10,
		Error:      "rate limit exceeded",
		StartedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 0, 1, 0, 0, time.UTC),
	}
	require.NoError(t, db.SaveJobAudit(ctx, audit))

	audit.State = "succeeded"
	audit.Error = ""
	require.NoError(t, db.SaveJobAudit(ctx, audit))

	got, err := db.GetJobAudit(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", got.State)
	assert.Equal(t, "", got.Error)
	assert.True(t, got.StartedAt.Equal(audit.StartedAt))

	_, err = db.GetJobAudit(ctx, "job-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchRecords(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	older := sampleRecord("att-1")
	older.Title = "Attention Is All You Need"
	older.LastSeen = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := sampleRecord("att-2")
	newer.Title = "Attention Mechanisms Revisited"
	newer.LastSeen = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	other := sampleRecord("gnn-1")
	other.Title = "Graph Neural Network Survey"
	for _, rec := range []record.Record{older, newer, other} {
		require.NoError(t, db.UpsertRecord(ctx, rec))
	}

	got, err := db.SearchRecords(ctx, "ATTENTION", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Attention Mechanisms Revisited", got[0].Title, "most recently seen first")

	// LIKE metacharacters in the query are literals, not wildcards.
	got, err = db.SearchRecords(ctx, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = db.SearchRecords(ctx, "attention", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
