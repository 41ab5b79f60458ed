package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/record"
)

var searchLimit int

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum records to return")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored records by title",
	Long: `Search stored records by title substring, case-insensitively.

Example:
  paperpulse search "attention" --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	recs, err := db.SearchRecords(context.Background(), args[0], searchLimit)
	if err != nil {
		exitWithError(ExitError, "searching records: %v", err)
	}

	if !humanOutput {
		if recs == nil {
			recs = []record.Record{}
		}
		outputJSON(recs)
		return nil
	}

	for _, rec := range recs {
		outputHuman("%s  %s (%s)\n", rec.Identity,
			truncateString(rec.Title, ListTitleMaxLen), formatDate(rec.Published))
	}
	outputHuman("%d record(s)\n", len(recs))
	return nil
}
