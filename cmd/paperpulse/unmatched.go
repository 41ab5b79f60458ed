package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/record"
)

var unmatchedLimit int

func init() {
	unmatchedCmd.Flags().IntVar(&unmatchedLimit, "limit", 100, "Max entries to list")
	rootCmd.AddCommand(unmatchedCmd)
}

var unmatchedCmd = &cobra.Command{
	Use:   "unmatched",
	Short: "List bibliography entries still awaiting a match",
	Long: `List stored bibliography entries that did not clear the match
threshold. These are revisited by 'paperpulse match' as the corpus
grows.`,
	Args: cobra.NoArgs,
	RunE: runUnmatched,
}

func runUnmatched(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	refs, err := db.ListUnmatchedReferences(context.Background(), unmatchedLimit)
	if err != nil {
		exitWithError(ExitError, "listing unmatched references: %v", err)
	}

	if !humanOutput {
		if refs == nil {
			refs = []record.UnmatchedReference{}
		}
		outputJSON(refs)
		return nil
	}

	for _, u := range refs {
		outputHuman("[%d] %s\n", u.ID, truncateString(u.RawText, ListTitleMaxLen))
		if u.Title != "" {
			outputHuman("     parsed: %q (%d)\n", u.Title, u.Year)
		}
	}
	outputHuman("%d unmatched reference(s)\n", len(refs))
	return nil
}
