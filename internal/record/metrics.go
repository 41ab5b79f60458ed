package record

import (
	"errors"
	"time"
)

// Tracked metric names.
const (
	MetricStars     = "stars"
	MetricCitations = "citations"
)

// DateFormat is the canonical snapshot date layout.
const DateFormat = "2006-01-02"

// MetricSnapshot is one immutable, dated observation of an external metric.
// At most one snapshot exists per (identity, metric, date); corrections are
// written as new snapshots on a later date, never as mutations.
type MetricSnapshot struct {
	Identity string `json:"identity"`
	Metric   string `json:"metric"`
	Date     string `json:"date"` // YYYY-MM-DD
	Value    int    `json:"value"`

	ObservedAt time.Time `json:"observed_at"`
}

// Snapshot validation errors.
var (
	ErrEmptyIdentity = errors.New("identity is required")
	ErrEmptyMetric   = errors.New("metric is required")
	ErrBadDate       = errors.New("date must be YYYY-MM-DD")
	ErrNegativeValue = errors.New("value cannot be negative")
)

// ValidateForCreate validates a snapshot before it is appended.
func (s *MetricSnapshot) ValidateForCreate() error {
	if s.Identity == "" {
		return ErrEmptyIdentity
	}
	if s.Metric == "" {
		return ErrEmptyMetric
	}
	if _, err := time.Parse(DateFormat, s.Date); err != nil {
		return ErrBadDate
	}
	if s.Value < 0 {
		return ErrNegativeValue
	}
	return nil
}

// DateOf formats a time as a snapshot date.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// ScoreComponents holds every intermediate term of the trend formula so a
// stored score can be audited against its snapshot history.
type ScoreComponents struct {
	StarsGrowth     float64 `json:"stars_growth"`     // 7-day window
	CitationsGrowth float64 `json:"citations_growth"` // 30-day window
	Absolute        float64 `json:"absolute"`         // Ceiling-normalized current values
	Recency         float64 `json:"recency"`          // Age bonus
}

// Score is the derived composite trend value for a record. It is always
// reconstructable from the snapshot history and is never a source of truth.
type Score struct {
	Value      float64         `json:"value"`
	Components ScoreComponents `json:"components"`
	Version    int             `json:"version"` // Formula version
	ComputedAt time.Time       `json:"computed_at"`
}
