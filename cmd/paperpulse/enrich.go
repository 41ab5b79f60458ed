package main

import (
	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/job"
)

var (
	enrichIdentity string
	enrichLimit    int
)

func init() {
	enrichCmd.Flags().StringVar(&enrichIdentity, "identity", "", "Enrich only this record")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "Max records to walk (0 = default)")
	rootCmd.AddCommand(enrichCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Pull reference lists for known records",
	Long: `Pull reference lists for known records through the citation-expansion
source, merging each referenced paper into the corpus. Without
--identity, records that still lack a usable bibliography are walked;
with it, the one record is re-enriched unconditionally.

Examples:
  paperpulse enrich
  paperpulse enrich --identity 3f2a9c...`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

func runEnrich(cmd *cobra.Command, args []string) error {
	runJob(job.KindEnrich, job.Params{
		Identity: enrichIdentity,
		Limit:    enrichLimit,
	})
	return nil
}
