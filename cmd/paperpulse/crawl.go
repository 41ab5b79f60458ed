package main

import (
	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/job"
)

var (
	crawlQuery    string
	crawlNativeID string
	crawlPageSize int
)

func init() {
	crawlCmd.Flags().StringVar(&crawlQuery, "query", "", "Free-text search query passed to the source")
	crawlCmd.Flags().StringVar(&crawlNativeID, "id", "", "Source-native ID to fetch (e.g. a paper whose references to expand)")
	crawlCmd.Flags().IntVar(&crawlPageSize, "page-size", 0, "Candidates per fetched page (0 = source default)")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <source>",
	Short: "Crawl a source and merge discovered papers into the corpus",
	Long: `Crawl one configured source, merging every discovered paper into the
corpus. Papers already known are enriched in place; papers carrying a
reference section are citation-matched as they arrive.

Sources: academic, citation-expansion, conference, repometrics

Examples:
  paperpulse crawl academic --query "variational inference"
  paperpulse crawl citation-expansion --id abc123
  paperpulse crawl conference`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	runJob(job.KindCrawl, job.Params{
		Source:   args[0],
		Query:    crawlQuery,
		NativeID: crawlNativeID,
		PageSize: crawlPageSize,
	})
	return nil
}
