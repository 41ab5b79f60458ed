package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paperpulse/paperpulse/internal/job"
)

// runJob wires the pipeline, submits one job, and blocks until it
// reaches a terminal state. An interrupt requests cooperative
// cancellation: the in-flight sub-unit finishes, progress is kept, and
// the command exits with the cancelled code.
func runJob(kind job.Kind, params job.Params) {
	cfg := mustLoadConfig()
	log := newLogger()
	defer log.Sync()

	db := mustOpenDatabase(cfg)
	defer db.Close()

	orch := buildOrchestrator(cfg, db, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := orch.SubmitJob(ctx, kind, params)
	if err != nil {
		exitWithError(ExitError, "submitting job: %v", err)
	}

	go func() {
		<-ctx.Done()
		// ErrAlreadyDone just means the job beat the signal.
		_ = orch.CancelJob(id)
	}()

	orch.Wait()

	status, err := orch.GetJobStatus(id)
	if err != nil {
		exitWithError(ExitError, "reading job status: %v", err)
	}

	if humanOutput {
		printJobStatusHuman(status)
	} else {
		outputJSON(status)
	}

	switch status.State {
	case job.StateFailed:
		os.Exit(ExitJobFailed)
	case job.StateCancelled:
		os.Exit(ExitCancelled)
	}
}

// printJobStatusHuman prints a terminal job status.
func printJobStatusHuman(s job.Status) {
	outputHuman("Job %s (%s): %s\n", s.ID, s.Kind, s.State)
	outputHuman("  Progress:  %d/%d\n", s.Progress.Done, s.Progress.Total)
	outputHuman("  Succeeded: %d  Skipped: %d  Failed: %d\n",
		s.Counts.Succeeded, s.Counts.Skipped, s.Counts.Failed)
	if s.Error != "" {
		outputHuman("  Error:     %s\n", s.Error)
	}
	if !s.FinishedAt.IsZero() && !s.StartedAt.IsZero() {
		outputHuman("  Duration:  %s\n", s.FinishedAt.Sub(s.StartedAt).Round(10*time.Millisecond))
	}
}
