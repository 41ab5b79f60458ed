package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/bibliography"
	"github.com/paperpulse/paperpulse/internal/citation"
	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/storage"
)

var bibMatch bool

func init() {
	bibCmd.Flags().BoolVar(&bibMatch, "match", true, "Run citation matching on the extracted references")
	rootCmd.AddCommand(bibCmd)
}

var bibCmd = &cobra.Command{
	Use:   "bib <identity> <pdf>",
	Short: "Extract a PDF's reference section onto a record",
	Long: `Extract the reference section from a paper PDF and attach it to an
existing record as a pending extracted field, then match its entries
against the corpus.

Example:
  paperpulse bib 3f2a9c0d1b... paper.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runBib,
}

// BibResponse reports an extraction run.
type BibResponse struct {
	Identity string          `json:"identity"`
	Bytes    int             `json:"bytes"`
	Match    *citation.Stats `json:"match,omitempty"`
}

func runBib(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	log := newLogger()
	defer log.Sync()

	db := mustOpenDatabase(cfg)
	defer db.Close()

	ctx := context.Background()
	identity, pdfPath := args[0], args[1]

	rec, err := db.GetByIdentity(ctx, identity)
	if errors.Is(err, storage.ErrNotFound) {
		exitWithError(ExitDataError, "record not found: %s", identity)
	}
	if err != nil {
		exitWithError(ExitError, "getting record: %v", err)
	}

	text, err := bibliography.FromPDF(pdfPath)
	if err != nil {
		exitWithError(ExitError, "reading PDF: %v", err)
	}
	if text == "" {
		exitWithError(ExitDataError, "no reference section found in %s", pdfPath)
	}

	rec.Bibliography = record.NewExtracted(text)
	rec.LastSeen = time.Now().UTC()
	if err := db.UpsertRecord(ctx, rec); err != nil {
		exitWithError(ExitError, "saving record: %v", err)
	}

	resp := BibResponse{Identity: identity, Bytes: len(text)}
	if bibMatch {
		matcher := citation.NewMatcher(db, log)
		stats, err := matcher.MatchRecord(ctx, rec)
		if err != nil {
			exitWithError(ExitError, "matching references: %v", err)
		}
		resp.Match = &stats
	}

	if humanOutput {
		outputHuman("Extracted %d bytes of references onto %s\n", resp.Bytes, identity)
		if resp.Match != nil {
			outputHuman("Matched %d/%d entries (%d skipped)\n",
				resp.Match.Matched, resp.Match.Entries, resp.Match.Skipped)
		}
	} else {
		outputJSON(resp)
	}
	return nil
}
