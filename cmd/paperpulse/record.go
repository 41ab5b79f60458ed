package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/record"
	"github.com/paperpulse/paperpulse/internal/storage"
)

func init() {
	recordCmd.AddCommand(recordGetCmd)
	recordCmd.AddCommand(recordEdgesCmd)
	recordCmd.AddCommand(recordHistoryCmd)
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect stored paper records",
}

var recordGetCmd = &cobra.Command{
	Use:   "get <identity>",
	Short: "Get a single record by identity",
	Long: `Get a single record by its identity hash.

Example:
  paperpulse record get 3f2a9c0d1b...`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordGet,
}

var recordEdgesCmd = &cobra.Command{
	Use:   "edges <identity>",
	Short: "List citation edges touching a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordEdges,
}

var recordHistoryCmd = &cobra.Command{
	Use:   "history <identity>",
	Short: "List metric snapshots for a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordHistory,
}

func runRecordGet(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	rec, err := db.GetByIdentity(context.Background(), args[0])
	if errors.Is(err, storage.ErrNotFound) {
		exitWithError(ExitDataError, "record not found: %s", args[0])
	}
	if err != nil {
		exitWithError(ExitError, "getting record: %v", err)
	}

	if humanOutput {
		printRecordDetail(rec)
	} else {
		outputJSON(rec)
	}
	return nil
}

func runRecordEdges(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	edges, err := db.ListCitationEdges(context.Background(), args[0])
	if err != nil {
		exitWithError(ExitError, "listing edges: %v", err)
	}

	if !humanOutput {
		if edges == nil {
			edges = []record.CitationEdge{}
		}
		outputJSON(edges)
		return nil
	}

	identity := args[0]
	for _, e := range edges {
		if e.CitingID == identity {
			outputHuman("cites  %s [%d] %s\n", e.CitedID, e.Confidence,
				truncateString(e.RefText, ListTitleMaxLen))
		} else {
			outputHuman("cited-by  %s [%d]\n", e.CitingID, e.Confidence)
		}
	}
	outputHuman("%d edge(s)\n", len(edges))
	return nil
}

func runRecordHistory(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	snaps, err := db.ListSnapshots(context.Background(), args[0])
	if err != nil {
		exitWithError(ExitError, "listing snapshots: %v", err)
	}

	if !humanOutput {
		if snaps == nil {
			snaps = []record.MetricSnapshot{}
		}
		outputJSON(snaps)
		return nil
	}

	for _, s := range snaps {
		outputHuman("%s  %-10s %d\n", s.Date, s.Metric, s.Value)
	}
	outputHuman("%d snapshot(s)\n", len(snaps))
	return nil
}

func printRecordDetail(rec record.Record) {
	fmt.Println(rec.Identity)
	fmt.Println()

	fmt.Printf("Title:    %s\n", wrapText(rec.Title, TextWrapWidth, "          "))
	if len(rec.Authors) > 0 {
		fmt.Printf("Authors:  %s\n", wrapText(formatAuthors(rec.Authors, 5), TextWrapWidth, "          "))
	}
	fmt.Printf("Date:     %s\n", formatDate(rec.Published))

	if rec.RepoURL != "" {
		fmt.Printf("Repo:     %s\n", rec.RepoURL)
	}
	if rec.SourceURL != "" {
		fmt.Printf("Source:   %s\n", rec.SourceURL)
	}

	if len(rec.Provenance) > 0 {
		fmt.Println()
		fmt.Println("Seen by:")
		for _, p := range rec.Provenance {
			fmt.Printf("  %s (%s)\n", p.Source, p.NativeID)
		}
	}

	if rec.Score != nil {
		fmt.Println()
		fmt.Printf("Score:    %.4f (v%d, computed %s)\n",
			rec.Score.Value, rec.Score.Version, rec.Score.ComputedAt.Format("2006-01-02"))
		c := rec.Score.Components
		fmt.Printf("  stars growth %.4f  citations growth %.4f  absolute %.4f  recency %.4f\n",
			c.StarsGrowth, c.CitationsGrowth, c.Absolute, c.Recency)
	}

	if rec.Abstract.Usable() {
		fmt.Println()
		fmt.Printf("Abstract (%s):\n", rec.Abstract.Status)
		fmt.Printf("  %s\n", wrapText(rec.Abstract.Value, TextWrapWidth, "  "))
	}

	if rec.LastMetricsError != "" {
		fmt.Println()
		fmt.Printf("Metrics error (%d consecutive): %s\n", rec.MetricFailures, rec.LastMetricsError)
	}
}
