package main

import (
	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/job"
)

var (
	matchIdentity string
	matchLimit    int
)

func init() {
	matchCmd.Flags().StringVar(&matchIdentity, "identity", "", "Match only this record's bibliography")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 0, "Max stored unmatched references to revisit (0 = default)")
	rootCmd.AddCommand(matchCmd)
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Resolve bibliography entries into citation edges",
	Long: `Resolve bibliography entries into citation edges by fuzzy title and
year matching. With --identity, one record's reference section is
matched; without it, stored unmatched references are revisited against
the corpus as it stands today.

Examples:
  paperpulse match --identity 3f2a9c...
  paperpulse match --limit 500`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	runJob(job.KindMatch, job.Params{
		Identity: matchIdentity,
		Limit:    matchLimit,
	})
	return nil
}
