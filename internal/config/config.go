// Package config loads and validates pipeline configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/paperpulse/paperpulse/internal/metrics"
)

// Config is the full pipeline configuration, stored as YAML.
type Config struct {
	// DBPath locates the SQLite database file.
	DBPath string `yaml:"db_path"`

	// Workers bounds how many jobs run concurrently.
	Workers int `yaml:"workers"`

	Retry   RetryConfig             `yaml:"retry"`
	Sources map[string]SourceConfig `yaml:"sources"`
	Score   ScoreConfig             `yaml:"score"`
	Tracker TrackerConfig           `yaml:"tracker"`
}

// RetryConfig tunes the transient-error retry policy. The values are
// operational knobs, deliberately configuration rather than constants.
type RetryConfig struct {
	BaseDelayMS int     `yaml:"base_delay_ms"`
	MaxDelayMS  int     `yaml:"max_delay_ms"`
	MaxAttempts int     `yaml:"max_attempts"`
	Jitter      float64 `yaml:"jitter"` // Fraction of delay randomized, 0-1
}

// SourceConfig configures one external source adapter.
type SourceConfig struct {
	Enabled     bool    `yaml:"enabled"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"` // Usually injected from env
	RequiresKey bool    `yaml:"requires_key,omitempty"`
	RateLimit   float64 `yaml:"rate_limit"` // Requests per second
	Burst       int     `yaml:"burst,omitempty"`
}

// ScoreConfig configures the derived trend score.
type ScoreConfig struct {
	Weights  metrics.Weights  `yaml:"weights"`
	Ceilings metrics.Ceilings `yaml:"ceilings"`
}

// TrackerConfig configures the metrics tracker pass.
type TrackerConfig struct {
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
	ListLimit              int `yaml:"list_limit"`
}

// Known source names. Sources not listed here are rejected at load time
// so a typo fails fast instead of silently never running.
var knownSources = map[string]bool{
	"academic":           true,
	"conference":         true,
	"citation-expansion": true,
	"repometrics":        true,
}

// Validation errors.
var (
	ErrWeightsSum     = errors.New("score weights must sum to 1")
	ErrNoWorkers      = errors.New("workers must be positive")
	ErrBadRateLimit   = errors.New("enabled source needs a positive rate limit")
	ErrMissingKey     = errors.New("enabled source requires an API key")
	ErrUnknownSource  = errors.New("unknown source name")
	ErrBadRetryConfig = errors.New("retry config must have positive delays and attempts")
	ErrBadCeiling     = errors.New("score ceilings must be positive")
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:  "paperpulse.db",
		Workers: 4,
		Retry: RetryConfig{
			BaseDelayMS: 500,
			MaxDelayMS:  30000,
			MaxAttempts: 4,
			Jitter:      0.5,
		},
		Sources: map[string]SourceConfig{
			"academic":           {Enabled: true, RateLimit: 10, Burst: 1},
			"citation-expansion": {Enabled: true, RateLimit: 10, Burst: 1},
			"conference":         {Enabled: false, RateLimit: 2, Burst: 1},
			"repometrics":        {Enabled: true, RateLimit: 1, Burst: 1},
		},
		Score: ScoreConfig{
			Weights:  metrics.DefaultWeights(),
			Ceilings: metrics.DefaultCeilings(),
		},
		Tracker: TrackerConfig{
			MaxConsecutiveFailures: metrics.DefaultMaxFailures,
			ListLimit:              1000,
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults, not an error; a present
// but invalid file fails.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file next to the config file into the process
// environment if one exists. Missing files are fine.
func LoadEnvFile(configPath string) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))
}

// applyEnv injects per-source API keys from the environment:
// PAPERPULSE_ACADEMIC_API_KEY overrides sources["academic"].api_key, etc.
func (c *Config) applyEnv() {
	for name, src := range c.Sources {
		envName := "PAPERPULSE_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_API_KEY"
		if key := os.Getenv(envName); key != "" {
			src.APIKey = key
			c.Sources[name] = src
		}
	}
}

// Validate fails fast on configuration problems so a bad deployment is
// rejected before any job is submitted or any external call is made.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrNoWorkers
	}
	if c.Retry.BaseDelayMS <= 0 || c.Retry.MaxDelayMS <= 0 || c.Retry.MaxAttempts <= 0 {
		return ErrBadRetryConfig
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("%w: jitter must be within [0,1]", ErrBadRetryConfig)
	}

	if diff := math.Abs(c.Score.Weights.Sum() - 1); diff > 1e-9 {
		return fmt.Errorf("%w (got %.4f)", ErrWeightsSum, c.Score.Weights.Sum())
	}
	if c.Score.Ceilings.Stars <= 0 || c.Score.Ceilings.Citations <= 0 {
		return ErrBadCeiling
	}

	for name, src := range c.Sources {
		if !knownSources[name] {
			return fmt.Errorf("%w: %q", ErrUnknownSource, name)
		}
		if !src.Enabled {
			continue
		}
		if src.RateLimit <= 0 {
			return fmt.Errorf("%w: %q", ErrBadRateLimit, name)
		}
		if src.RequiresKey && src.APIKey == "" {
			return fmt.Errorf("%w: %q", ErrMissingKey, name)
		}
	}

	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
