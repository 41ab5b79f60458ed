package record

import (
	"errors"
	"time"
)

// CitationEdge represents a directed citation from one record to another.
// The original reference text is retained so every edge stays auditable;
// mistaken matches are corrected by appending, never by deleting history.
type CitationEdge struct {
	CitingID string `json:"citing_id"`
	CitedID  string `json:"cited_id"`

	RefText    string `json:"ref_text"`   // Original bibliography entry
	Confidence int    `json:"confidence"` // Match score, 0-100
	Method     string `json:"method"`     // e.g. "fuzzy-title-year"

	CreatedAt time.Time `json:"created_at"`
}

// Match methods.
const (
	MethodFuzzyTitleYear = "fuzzy-title-year"
)

// Edge validation errors.
var (
	ErrEmptyCitingID = errors.New("citing_id is required")
	ErrEmptyCitedID  = errors.New("cited_id is required")
	ErrEmptyMethod   = errors.New("method is required")
	ErrSelfEdge      = errors.New("citing_id and cited_id cannot be the same")
	ErrBadConfidence = errors.New("confidence must be between 0 and 100")
)

// ValidateForCreate validates an edge before it is appended.
func (e *CitationEdge) ValidateForCreate() error {
	if e.CitingID == "" {
		return ErrEmptyCitingID
	}
	if e.CitedID == "" {
		return ErrEmptyCitedID
	}
	if e.Method == "" {
		return ErrEmptyMethod
	}
	if e.CitingID == e.CitedID {
		return ErrSelfEdge
	}
	if e.Confidence < 0 || e.Confidence > 100 {
		return ErrBadConfidence
	}
	return nil
}

// Key returns the identity tuple for duplicate detection.
func (e *CitationEdge) Key() EdgeKey {
	return EdgeKey{CitingID: e.CitingID, CitedID: e.CitedID, Method: e.Method}
}

// EdgeKey is the unique identity of an edge.
type EdgeKey struct {
	CitingID string
	CitedID  string
	Method   string
}

// UnmatchedReference is a bibliography entry that did not clear the match
// threshold. It is kept for lazy reprocessing: records arriving later may
// retroactively match it.
type UnmatchedReference struct {
	ID       int64  `json:"id,omitempty"`
	CitingID string `json:"citing_id"`
	RawText  string `json:"raw_text"`

	// Best-effort parse results, stored so rematching can skip reparsing.
	Title string `json:"title,omitempty"`
	Year  int    `json:"year,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
