// Package main provides the paperpulse CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paperpulse/paperpulse/internal/config"
	"github.com/paperpulse/paperpulse/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// configPath locates the YAML configuration file
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paperpulse",
	Short: "Academic paper discovery and trend tracking pipeline",
	Long: `paperpulse discovers academic papers across external sources, merges
duplicates into canonical records, links papers through fuzzy citation
matching, and tracks external metrics (repository stars, citation
counts) into a derived trend score.

Core features:
  - Source crawling with per-source rate limits and transient-error retries
  - Deterministic identity hashing and conflict-free metadata merging
  - Citation matching with lazy rematch of unmatched references
  - Daily metric snapshots and a reproducible composite score

State lives in a single SQLite database. All commands output JSON by
default for scripting; pass --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "paperpulse.yaml", "Path to the configuration file")
	rootCmd.Version = Version
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	config.LoadEnvFile(configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(cfg *config.Config) *storage.DB {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// newLogger builds the process logger. Logs go to stderr so stdout
// stays parseable JSON.
func newLogger() *zap.Logger {
	var zcfg zap.Config
	if humanOutput {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
