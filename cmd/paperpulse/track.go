package main

import (
	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/job"
)

func init() {
	rootCmd.AddCommand(trackCmd)
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Snapshot external metrics and recompute trend scores",
	Long: `Run one metrics pass over every record with an external link:
snapshot repository stars and citation counts for today, then recompute
each record's trend score from its snapshot history.

Re-running within the same day is a no-op for snapshots; scores are
always recomputed.

Example:
  paperpulse track`,
	Args: cobra.NoArgs,
	RunE: runTrack,
}

func runTrack(cmd *cobra.Command, args []string) error {
	runJob(job.KindTrack, job.Params{})
	return nil
}
