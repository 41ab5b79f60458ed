package identity

import (
	"context"
	"testing"
	"time"

	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/storage"
)

func TestResolveCreatesThenMerges(t *testing.T) {
	repo := storage.NewMemory()
	r := NewResolver(repo, nil)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := record.Candidate{
		Title:     "Attention Is All You Need",
		Authors:   []record.Author{{Name: "A. Vaswani"}},
		Abstract:  "The dominant sequence transduction models...",
		Published: record.PublicationDate{Year: 2017},
		Source:    "academic",
		NativeID:  "paper-1",
		FetchedAt: t0,
	}

	rec, created, err := r.Resolve(ctx, first)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !created {
		t.Error("first resolve should create a record")
	}
	if rec.Abstract.Status != record.VerificationPending {
		t.Errorf("abstract status = %q, want pending", rec.Abstract.Status)
	}

	// The same paper from a second source, title differing only in
	// whitespace and punctuation, fills in the repo link.
	second := record.Candidate{
		Title:     "  Attention Is All You Need  ",
		Published: record.PublicationDate{Year: 2017, Month: 6},
		RepoURL:   "https://github.com/tensorflow/tensor2tensor",
		Source:    "conference",
		NativeID:  "conf-42",
		FetchedAt: t0.Add(time.Hour),
	}

	merged, created, err := r.Resolve(ctx, second)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if created {
		t.Error("second resolve should merge, not create")
	}
	if merged.Identity != rec.Identity {
		t.Errorf("identities differ: %s vs %s", merged.Identity, rec.Identity)
	}
	if repo.RecordCount() != 1 {
		t.Errorf("record count = %d, want 1", repo.RecordCount())
	}

	// First-non-empty-wins: existing fields survive, gaps are filled.
	if merged.Title != first.Title {
		t.Errorf("title overwritten: %q", merged.Title)
	}
	if merged.Abstract.Value != first.Abstract {
		t.Errorf("abstract overwritten: %q", merged.Abstract.Value)
	}
	if merged.RepoURL != second.RepoURL {
		t.Errorf("repo URL not filled: %q", merged.RepoURL)
	}
	if merged.Published.Month != 6 {
		t.Errorf("month not filled: %d", merged.Published.Month)
	}
	if len(merged.Provenance) != 2 {
		t.Fatalf("provenance entries = %d, want 2", len(merged.Provenance))
	}
	if !merged.LastSeen.Equal(t0.Add(time.Hour)) {
		t.Errorf("last seen = %v, want %v", merged.LastSeen, t0.Add(time.Hour))
	}
	if !merged.CreatedAt.Equal(t0) {
		t.Errorf("created at = %v, want original %v", merged.CreatedAt, t0)
	}
}

func TestResolveRefreshesProvenanceInPlace(t *testing.T) {
	repo := storage.NewMemory()
	r := NewResolver(repo, nil)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cand := record.Candidate{
		Title:     "Deep Residual Learning",
		Published: record.PublicationDate{Year: 2015},
		Source:    "academic",
		NativeID:  "paper-9",
		FetchedAt: t0,
	}

	if _, _, err := r.Resolve(ctx, cand); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	cand.FetchedAt = t0.Add(24 * time.Hour)
	rec, _, err := r.Resolve(ctx, cand)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(rec.Provenance) != 1 {
		t.Fatalf("provenance entries = %d, want 1 (same source upserted)", len(rec.Provenance))
	}
	if !rec.Provenance[0].FetchedAt.Equal(cand.FetchedAt) {
		t.Errorf("provenance not refreshed: %v", rec.Provenance[0].FetchedAt)
	}
}

func TestResolveRejectsUntitled(t *testing.T) {
	repo := storage.NewMemory()
	r := NewResolver(repo, nil)

	_, _, err := r.Resolve(context.Background(), record.Candidate{
		Title:  "???",
		Source: "academic",
	})
	if err == nil {
		t.Fatal("expected error for unidentifiable candidate")
	}
	if repo.RecordCount() != 0 {
		t.Errorf("record count = %d, want 0", repo.RecordCount())
	}
}

func TestMergeIdempotent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	existing := record.Record{
		Identity:  "abc",
		Title:     "Some Paper",
		Published: record.PublicationDate{Year: 2020},
		Provenance: []record.Provenance{
			{Source: "academic", NativeID: "x", FetchedAt: t0},
		},
		CreatedAt: t0,
		LastSeen:  t0,
	}
	cand := record.Candidate{
		Title:     "Some Paper",
		Abstract:  "An abstract.",
		Published: record.PublicationDate{Year: 2020},
		Source:    "conference",
		NativeID:  "y",
		FetchedAt: t0.Add(time.Hour),
	}

	once := Merge(existing, cand)
	twice := Merge(once, cand)

	if len(twice.Provenance) != len(once.Provenance) {
		t.Errorf("repeated merge grew provenance: %d vs %d",
			len(twice.Provenance), len(once.Provenance))
	}
	if twice.Abstract != once.Abstract {
		t.Errorf("repeated merge changed abstract: %+v vs %+v", twice.Abstract, once.Abstract)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	existing := record.Record{
		Identity:  "abc",
		Title:     "Some Paper",
		Published: record.PublicationDate{Year: 2020},
		Provenance: []record.Provenance{
			{Source: "academic", NativeID: "x", FetchedAt: t0},
		},
		CreatedAt: t0,
		LastSeen:  t0,
	}
	refresh := record.Candidate{
		Title:     "Some Paper",
		Published: record.PublicationDate{Year: 2020},
		Source:    "academic",
		NativeID:  "x-v2",
		FetchedAt: t0.Add(time.Hour),
	}

	merged := Merge(existing, refresh)

	// The refresh must land on the merged copy only; the existing record
	// shares its provenance backing array with whatever repository
	// returned it.
	if existing.Provenance[0].NativeID != "x" || !existing.Provenance[0].FetchedAt.Equal(t0) {
		t.Errorf("input provenance mutated: %+v", existing.Provenance[0])
	}
	if merged.Provenance[0].NativeID != "x-v2" {
		t.Errorf("merged provenance not refreshed: %+v", merged.Provenance[0])
	}
}
