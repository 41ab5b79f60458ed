package citation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/paperpulse/paperpulse/internal/identity"
	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/storage"
)

const (
	// MatchThreshold is the minimum score for entries with a parsed year.
	MatchThreshold = 85

	// NoYearThreshold applies when the entry has no year: without the
	// year bonus available, a higher bar keeps confidence comparable.
	NoYearThreshold = 90

	// YearBonus is added when the entry year equals the candidate year.
	YearBonus = 10

	// DefaultCandidateLimit bounds the same-year candidate set.
	DefaultCandidateLimit = 500

	// DefaultSmallCorpus is the largest corpus a full scan may touch.
	DefaultSmallCorpus = 200
)

// matchParams configures plain normalized-distance similarity.
var matchParams = levenshtein.NewParams()

// SimilarityScore returns the normalized Levenshtein ratio of two strings
// on a 0-100 scale. Inputs should already be normalized titles.
func SimilarityScore(a, b string) int {
	return int(math.Round(levenshtein.Similarity(a, b, matchParams) * 100))
}

// EntryScore scores a parsed entry against a candidate record: the title
// similarity ratio plus a fixed bonus when the years agree, capped at 100.
// entryTitle must already be in normalized form.
func EntryScore(entryTitle string, entryYear int, cand record.Record) int {
	score := SimilarityScore(entryTitle, identity.NormalizeTitle(cand.Title))
	if entryYear != 0 && entryYear == cand.Published.Year {
		score += YearBonus
		if score > 100 {
			score = 100
		}
	}
	return score
}

// Stats summarizes one matching pass.
type Stats struct {
	Entries   int `json:"entries"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	Skipped   int `json:"skipped"`
}

// Matcher resolves bibliography entries into citation edges.
type Matcher struct {
	repo storage.Repository
	log  *zap.Logger

	candidateLimit int
	smallCorpus    int
	now            func() time.Time
}

// NewMatcher creates a matcher backed by the given repository.
func NewMatcher(repo storage.Repository, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{
		repo:           repo,
		log:            log,
		candidateLimit: DefaultCandidateLimit,
		smallCorpus:    DefaultSmallCorpus,
		now:            time.Now,
	}
}

// MatchRecord processes a record's bibliography section: each entry is
// parsed, scored against the corpus, and either linked as a citation edge
// or stored as an unmatched reference for lazy reprocessing. Unparsable
// entries are skipped at entry granularity, never failing the batch.
func (m *Matcher) MatchRecord(ctx context.Context, rec record.Record) (Stats, error) {
	var stats Stats
	if !rec.Bibliography.Usable() {
		return stats, nil
	}

	for _, raw := range Segment(rec.Bibliography.Value) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Entries++

		entry, ok := ParseEntry(raw)
		if !ok {
			if err := m.saveUnmatched(ctx, rec.Identity, entry); err != nil {
				return stats, err
			}
			stats.Skipped++
			continue
		}

		edge, err := m.resolveEntry(ctx, rec.Identity, entry)
		if err != nil {
			return stats, err
		}
		if edge == nil {
			if err := m.saveUnmatched(ctx, rec.Identity, entry); err != nil {
				return stats, err
			}
			stats.Unmatched++
			continue
		}

		if err := m.appendEdge(ctx, *edge); err != nil {
			return stats, err
		}
		stats.Matched++
	}

	return stats, nil
}

// RematchUnmatched re-runs matching over stored unmatched references.
// Records that arrived after the original pass may now clear the
// threshold; successful matches remove the unmatched entry.
func (m *Matcher) RematchUnmatched(ctx context.Context, limit int) (Stats, error) {
	var stats Stats

	unmatched, err := m.repo.ListUnmatchedReferences(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("listing unmatched references: %w", err)
	}

	for _, u := range unmatched {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Entries++

		entry := ParsedEntry{Title: u.Title, Year: u.Year, Raw: u.RawText}
		if entry.Title == "" {
			var ok bool
			if entry, ok = ParseEntry(u.RawText); !ok {
				stats.Skipped++
				continue
			}
		}

		edge, err := m.resolveEntry(ctx, u.CitingID, entry)
		if err != nil {
			return stats, err
		}
		if edge == nil {
			stats.Unmatched++
			continue
		}

		if err := m.appendEdge(ctx, *edge); err != nil {
			return stats, err
		}
		if err := m.repo.DeleteUnmatchedReference(ctx, u.ID); err != nil {
			return stats, fmt.Errorf("deleting matched reference: %w", err)
		}
		stats.Matched++
	}

	return stats, nil
}

// resolveEntry scores an entry against the candidate set and returns the
// edge for the best candidate, or nil when nothing clears the threshold.
func (m *Matcher) resolveEntry(ctx context.Context, citingID string, entry ParsedEntry) (*record.CitationEdge, error) {
	candidates, err := m.candidates(ctx, entry.Year)
	if err != nil {
		return nil, err
	}

	normalized := identity.NormalizeTitle(entry.Title)
	if normalized == "" {
		return nil, nil
	}

	threshold := MatchThreshold
	if entry.Year == 0 {
		threshold = NoYearThreshold
	}

	var best *record.Record
	bestScore := 0
	for i := range candidates {
		cand := &candidates[i]
		if cand.Identity == citingID {
			// A paper cannot cite itself.
			continue
		}
		score := EntryScore(normalized, entry.Year, *cand)
		if score < bestScore {
			continue
		}
		// Ties go to the more recently seen record, on the theory that
		// the actively maintained entry is the better link target.
		if score == bestScore && best != nil && !cand.LastSeen.After(best.LastSeen) {
			continue
		}
		best = cand
		bestScore = score
	}

	if best == nil || bestScore < threshold {
		return nil, nil
	}

	return &record.CitationEdge{
		CitingID:   citingID,
		CitedID:    best.Identity,
		RefText:    entry.Raw,
		Confidence: bestScore,
		Method:     record.MethodFuzzyTitleYear,
		CreatedAt:  m.now().UTC(),
	}, nil
}

// candidates returns the bounded candidate set for an entry year. The
// full corpus is scanned only when it is small enough to afford.
func (m *Matcher) candidates(ctx context.Context, year int) ([]record.Record, error) {
	if year != 0 {
		recs, err := m.repo.ListCandidatesForMatching(ctx, year, m.candidateLimit)
		if err != nil {
			return nil, fmt.Errorf("listing candidates: %w", err)
		}
		if len(recs) > 0 {
			return recs, nil
		}
	}

	recs, err := m.repo.ListCandidatesForMatching(ctx, 0, m.smallCorpus+1)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	if len(recs) > m.smallCorpus {
		return nil, nil
	}
	return recs, nil
}

// appendEdge writes an edge, treating an existing duplicate as success.
func (m *Matcher) appendEdge(ctx context.Context, edge record.CitationEdge) error {
	if err := edge.ValidateForCreate(); err != nil {
		return fmt.Errorf("invalid edge: %w", err)
	}
	err := m.repo.AppendCitationEdge(ctx, edge)
	if err != nil && !errors.Is(err, storage.ErrDuplicateEdge) {
		return fmt.Errorf("appending edge: %w", err)
	}
	m.log.Debug("citation edge",
		zap.String("citing", edge.CitingID),
		zap.String("cited", edge.CitedID),
		zap.Int("confidence", edge.Confidence))
	return nil
}

// saveUnmatched stores an entry for later reprocessing.
func (m *Matcher) saveUnmatched(ctx context.Context, citingID string, entry ParsedEntry) error {
	u := record.UnmatchedReference{
		CitingID:  citingID,
		RawText:   entry.Raw,
		Title:     identity.NormalizeTitle(entry.Title),
		Year:      entry.Year,
		CreatedAt: m.now().UTC(),
	}
	if err := m.repo.SaveUnmatchedReference(ctx, u); err != nil {
		return fmt.Errorf("saving unmatched reference: %w", err)
	}
	return nil
}
