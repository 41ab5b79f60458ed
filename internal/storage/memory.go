package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/paperpulse/paperpulse/internal/record"
)

// Memory is an in-memory Repository used by tests and small runs. It
// mirrors the SQLite implementation's semantics, including the
// duplicate-key errors.
type Memory struct {
	mu sync.RWMutex

	records   map[string]record.Record
	edges     map[record.EdgeKey]record.CitationEdge
	snapshots map[snapshotKey]record.MetricSnapshot
	unmatched map[int64]record.UnmatchedReference
	audits    map[string]JobAudit
	nextID    int64
}

type snapshotKey struct {
	identity, metric, date string
}

// Compile-time check that Memory satisfies the repository contract.
var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		records:   make(map[string]record.Record),
		edges:     make(map[record.EdgeKey]record.CitationEdge),
		snapshots: make(map[snapshotKey]record.MetricSnapshot),
		unmatched: make(map[int64]record.UnmatchedReference),
		audits:    make(map[string]JobAudit),
	}
}

// GetByIdentity implements Repository.
func (m *Memory) GetByIdentity(_ context.Context, identity string) (record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[identity]
	if !ok {
		return record.Record{}, ErrNotFound
	}
	return rec, nil
}

// UpsertRecord implements Repository.
func (m *Memory) UpsertRecord(_ context.Context, rec record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Identity] = rec
	return nil
}

// ListCandidatesForMatching implements Repository.
func (m *Memory) ListCandidatesForMatching(_ context.Context, year, limit int) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []record.Record
	for _, rec := range m.records {
		if year != 0 && rec.Published.Year != year {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].LastSeen.After(recs[j].LastSeen)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// ListRecordsWithExternalLinks implements Repository.
func (m *Memory) ListRecordsWithExternalLinks(_ context.Context, limit int) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []record.Record
	for _, rec := range m.records {
		if rec.RepoURL == "" && rec.SourceURL == "" {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Identity < recs[j].Identity
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// SearchRecords implements Repository.
func (m *Memory) SearchRecords(_ context.Context, query string, limit int) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(query)
	var recs []record.Record
	for _, rec := range m.records {
		if strings.Contains(strings.ToLower(rec.Title), needle) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].LastSeen.After(recs[j].LastSeen)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// AppendCitationEdge implements Repository.
func (m *Memory) AppendCitationEdge(_ context.Context, e record.CitationEdge) error {
	if err := e.ValidateForCreate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.Key()
	if _, exists := m.edges[key]; exists {
		return ErrDuplicateEdge
	}
	m.edges[key] = e
	return nil
}

// ListCitationEdges implements Repository.
func (m *Memory) ListCitationEdges(_ context.Context, identity string) ([]record.CitationEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var edges []record.CitationEdge
	for _, e := range m.edges {
		if e.CitingID == identity || e.CitedID == identity {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})
	return edges, nil
}

// AppendSnapshot implements Repository.
func (m *Memory) AppendSnapshot(_ context.Context, s record.MetricSnapshot) error {
	if err := s.ValidateForCreate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := snapshotKey{s.Identity, s.Metric, s.Date}
	if _, exists := m.snapshots[key]; exists {
		return ErrSnapshotExists
	}
	m.snapshots[key] = s
	return nil
}

// ListSnapshots implements Repository.
func (m *Memory) ListSnapshots(_ context.Context, identity string) ([]record.MetricSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var snaps []record.MetricSnapshot
	for _, s := range m.snapshots {
		if s.Identity == identity {
			snaps = append(snaps, s)
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Date != snaps[j].Date {
			return snaps[i].Date < snaps[j].Date
		}
		return snaps[i].Metric < snaps[j].Metric
	})
	return snaps, nil
}

// UpdateScore implements Repository.
func (m *Memory) UpdateScore(_ context.Context, identity string, score record.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[identity]
	if !ok {
		return ErrNotFound
	}
	rec.Score = &score
	m.records[identity] = rec
	return nil
}

// SetMetricsError implements Repository.
func (m *Memory) SetMetricsError(_ context.Context, identity, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[identity]
	if !ok {
		return ErrNotFound
	}
	if msg == "" {
		rec.LastMetricsError = ""
		rec.MetricFailures = 0
	} else {
		rec.LastMetricsError = msg
		rec.MetricFailures++
	}
	m.records[identity] = rec
	return nil
}

// SaveUnmatchedReference implements Repository.
func (m *Memory) SaveUnmatchedReference(_ context.Context, u record.UnmatchedReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.unmatched {
		if existing.CitingID == u.CitingID && existing.RawText == u.RawText {
			return nil
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.unmatched[u.ID] = u
	return nil
}

// ListUnmatchedReferences implements Repository.
func (m *Memory) ListUnmatchedReferences(_ context.Context, limit int) ([]record.UnmatchedReference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []record.UnmatchedReference
	for _, u := range m.unmatched {
		refs = append(refs, u)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// DeleteUnmatchedReference implements Repository.
func (m *Memory) DeleteUnmatchedReference(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unmatched, id)
	return nil
}

// SaveJobAudit implements Repository.
func (m *Memory) SaveJobAudit(_ context.Context, a JobAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits[a.ID] = a
	return nil
}

// GetJobAudit implements Repository.
func (m *Memory) GetJobAudit(_ context.Context, id string) (JobAudit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.audits[id]
	if !ok {
		return JobAudit{}, ErrNotFound
	}
	return a, nil
}

// EdgeCount returns the number of stored edges.
func (m *Memory) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}

// RecordCount returns the number of stored records.
func (m *Memory) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
