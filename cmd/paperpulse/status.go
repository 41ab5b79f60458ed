package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/storage"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the persisted outcome of a finished job",
	Long: `Show the persisted outcome of a finished job.

Jobs only persist terminal states, so a job that is still running (or
was never submitted) reports not found.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	audit, err := db.GetJobAudit(context.Background(), args[0])
	if errors.Is(err, storage.ErrNotFound) {
		exitWithError(ExitDataError, "no finished job with id %s", args[0])
	}
	if err != nil {
		exitWithError(ExitError, "reading job audit: %v", err)
	}

	if !humanOutput {
		outputJSON(audit)
		return nil
	}

	outputHuman("Job %s (%s): %s\n", audit.ID, audit.Kind, audit.State)
	outputHuman("  Progress:  %d/%d\n", audit.Done, audit.Total)
	outputHuman("  Succeeded: %d  Skipped: %d  Failed: %d\n",
		audit.Succeeded, audit.Skipped, audit.Failed)
	if audit.Error != "" {
		outputHuman("  Error:     %s\n", audit.Error)
	}
	if !audit.FinishedAt.IsZero() && !audit.StartedAt.IsZero() {
		outputHuman("  Duration:  %s\n", audit.FinishedAt.Sub(audit.StartedAt).Round(10*time.Millisecond))
	}
	return nil
}
