// Package metrics ingests external popularity snapshots and derives the
// composite trend score from snapshot history.
package metrics

import (
	"time"

	"github.com/paperpulse/paperpulse/internal/record"
)

// ScoreVersion identifies the formula below. Bump it when the formula
// changes so stored scores remain interpretable.
const ScoreVersion = 1

// Growth windows per metric.
const (
	StarsWindowDays     = 7
	CitationsWindowDays = 30
)

// RecencyWindowDays is the age at which the recency bonus reaches zero.
const RecencyWindowDays = 365

// Weights are the formula coefficients. They must sum to 1.
type Weights struct {
	StarsGrowth     float64 `yaml:"stars_growth" json:"stars_growth"`
	CitationsGrowth float64 `yaml:"citations_growth" json:"citations_growth"`
	Absolute        float64 `yaml:"absolute" json:"absolute"`
	Recency         float64 `yaml:"recency" json:"recency"`
}

// Sum returns the weight total, which Validate checks against 1.
func (w Weights) Sum() float64 {
	return w.StarsGrowth + w.CitationsGrowth + w.Absolute + w.Recency
}

// DefaultWeights balances growth against absolute popularity and age.
func DefaultWeights() Weights {
	return Weights{StarsGrowth: 0.35, CitationsGrowth: 0.25, Absolute: 0.25, Recency: 0.15}
}

// Ceilings are the normalization caps for absolute metric values.
type Ceilings struct {
	Stars     int `yaml:"stars" json:"stars"`
	Citations int `yaml:"citations" json:"citations"`
}

// DefaultCeilings saturate at values typical of a breakout paper.
func DefaultCeilings() Ceilings {
	return Ceilings{Stars: 10000, Citations: 1000}
}

// Growth computes (current - past) / max(past, 1) over a window of days,
// against the snapshot history of one metric. History must be sorted by
// date ascending. When fewer than window days of history exist the term
// is 0 rather than an error.
func Growth(history []record.MetricSnapshot, metric string, windowDays int, today string) float64 {
	todayT, err := time.Parse(record.DateFormat, today)
	if err != nil {
		return 0
	}
	cutoff := record.DateOf(todayT.AddDate(0, 0, -windowDays))

	current, haveCurrent := latestAtOrBefore(history, metric, today)
	past, havePast := latestAtOrBefore(history, metric, cutoff)
	if !haveCurrent || !havePast {
		return 0
	}

	denom := float64(past)
	if denom < 1 {
		denom = 1
	}
	return float64(current-past) / denom
}

// latestAtOrBefore returns the newest value of a metric observed on or
// before the given date.
func latestAtOrBefore(history []record.MetricSnapshot, metric, date string) (int, bool) {
	value, found := 0, false
	for _, s := range history {
		if s.Metric != metric || s.Date > date {
			continue
		}
		value, found = s.Value, true
	}
	return value, found
}

// clip01 clamps a ratio into [0, 1].
func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Compute derives the trend score from snapshot history, record age, and
// configuration. All intermediate components are returned inside the
// score so it can be audited and reproduced bit-for-bit.
func Compute(history []record.MetricSnapshot, ageDays int, today string, w Weights, c Ceilings) record.Score {
	comps := record.ScoreComponents{
		StarsGrowth:     Growth(history, record.MetricStars, StarsWindowDays, today),
		CitationsGrowth: Growth(history, record.MetricCitations, CitationsWindowDays, today),
	}

	stars, haveStars := latestAtOrBefore(history, record.MetricStars, today)
	cites, haveCites := latestAtOrBefore(history, record.MetricCitations, today)

	var parts []float64
	if haveStars && c.Stars > 0 {
		parts = append(parts, clip01(float64(stars)/float64(c.Stars)))
	}
	if haveCites && c.Citations > 0 {
		parts = append(parts, clip01(float64(cites)/float64(c.Citations)))
	}
	for _, p := range parts {
		comps.Absolute += p
	}
	if len(parts) > 0 {
		comps.Absolute /= float64(len(parts))
	}

	recency := 1 - float64(ageDays)/RecencyWindowDays
	if recency < 0 {
		recency = 0
	}
	comps.Recency = recency

	value := w.StarsGrowth*comps.StarsGrowth +
		w.CitationsGrowth*comps.CitationsGrowth +
		w.Absolute*comps.Absolute +
		w.Recency*comps.Recency

	return record.Score{
		Value:      value,
		Components: comps,
		Version:    ScoreVersion,
	}
}
