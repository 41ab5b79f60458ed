package main

import (
	"go.uber.org/zap"

	"github.com/paperpulse/paperpulse/internal/citation"
	"github.com/paperpulse/paperpulse/internal/config"
	"github.com/paperpulse/paperpulse/internal/identity"
	"github.com/paperpulse/paperpulse/internal/job"
	"github.com/paperpulse/paperpulse/internal/metrics"
	"github.com/paperpulse/paperpulse/internal/source"
	"github.com/paperpulse/paperpulse/internal/storage"
)

// buildOrchestrator wires the full pipeline from configuration: one
// adapter per enabled source, each holding its own shared rate limiter,
// plus the resolver, matcher, and tracker over the given repository.
func buildOrchestrator(cfg *config.Config, db *storage.DB, log *zap.Logger) *job.Orchestrator {
	var adapters []source.Adapter

	academicClient := newAcademicClient(cfg.Sources["academic"])
	if cfg.Sources["academic"].Enabled {
		adapters = append(adapters, source.NewAcademic(academicClient))
	}
	if src := cfg.Sources["citation-expansion"]; src.Enabled {
		adapters = append(adapters, source.NewCitationExpansion(newAcademicClient(src)))
	}
	if src := cfg.Sources["conference"]; src.Enabled {
		limiter := source.NewLimiter(src.RateLimit, src.Burst)
		adapters = append(adapters, source.NewConference(src.BaseURL, limiter))
	}

	// The repo client serves the tracker's star fetches even when the
	// repometrics discovery adapter is disabled.
	repoClient := newRepoClient(cfg.Sources["repometrics"])
	if cfg.Sources["repometrics"].Enabled {
		adapters = append(adapters, repoClient)
	}

	resolver := identity.NewResolver(db, log)
	matcher := citation.NewMatcher(db, log)
	tracker := metrics.NewTracker(db, repoClient, academicClient, metrics.TrackerConfig{
		Weights:         cfg.Score.Weights,
		Ceilings:        cfg.Score.Ceilings,
		MaxFailures:     cfg.Tracker.MaxConsecutiveFailures,
		ListLimit:       cfg.Tracker.ListLimit,
		CitationsSource: source.AcademicSourceName,
	}, log)

	return job.NewOrchestrator(db, resolver, matcher, tracker, adapters,
		cfg.Workers, job.PolicyFromConfig(cfg.Retry), log)
}

// newAcademicClient builds a paper-index client from one source entry.
func newAcademicClient(src config.SourceConfig) *source.AcademicClient {
	opts := []source.AcademicOption{
		source.WithLimiter(source.NewLimiter(src.RateLimit, src.Burst)),
	}
	if src.APIKey != "" {
		opts = append(opts, source.WithAPIKey(src.APIKey))
	}
	if src.BaseURL != "" {
		opts = append(opts, source.WithBaseURL(src.BaseURL))
	}
	return source.NewAcademicClient(opts...)
}

// newRepoClient builds the repository-metrics client from its source entry.
func newRepoClient(src config.SourceConfig) *source.RepoMetrics {
	opts := []source.RepoOption{
		source.WithRepoLimiter(source.NewLimiter(src.RateLimit, src.Burst)),
	}
	if src.APIKey != "" {
		opts = append(opts, source.WithRepoToken(src.APIKey))
	}
	if src.BaseURL != "" {
		opts = append(opts, source.WithRepoBaseURL(src.BaseURL))
	}
	return source.NewRepoMetrics(opts...)
}
