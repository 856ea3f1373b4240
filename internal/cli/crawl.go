package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"finbot/internal/domain"
)

var (
	crawlURL      string
	crawlMaxPages int
	crawlJSON     bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the knowledge base site and print statistics",
	Long: `Crawl every page listed in the sitemap, extract and chunk the text,
and print what a knowledge base build would contain. Nothing is embedded,
so no API key is needed.

Examples:
  finbot crawl
  finbot crawl --max-pages 20 --json`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().StringVar(&crawlURL, "sitemap", "", "sitemap URL (default from config)")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", -1, "maximum pages to fetch, 0 = no limit (default from config)")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "output as JSON")
}

type crawlReport struct {
	Stats    statsReport `json:"stats"`
	Failures []failure   `json:"failures,omitempty"`
}

type statsReport struct {
	Pages        int     `json:"pages"`
	FailedPages  int     `json:"failed_pages"`
	Documents    int     `json:"documents"`
	Chunks       int     `json:"chunks"`
	AvgChunkLen  float64 `json:"avg_chunk_chars"`
	BuildSeconds float64 `json:"seconds"`
}

type failure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()

	if crawlURL != "" {
		cfg.Crawl.SitemapURL = crawlURL
	}
	if crawlMaxPages >= 0 {
		cfg.Crawl.MaxPages = crawlMaxPages
	}

	indexUC, err := newIndexUseCase(cfg, logger, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Crawling %s...\n", cfg.Crawl.SitemapURL)

	res, err := indexUC.Crawl(cmd.Context(), cfg.Crawl.SitemapURL, newProgress("Crawling"))
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	report := crawlReport{Stats: toStatsReport(res.Stats)}
	for _, f := range res.Failures {
		report.Failures = append(report.Failures, failure{URL: f.URL, Error: f.Err.Error()})
	}

	out := cmd.OutOrStdout()
	if crawlJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "\nCrawl complete:\n")
	fmt.Fprintf(out, "  Pages fetched:   %d\n", report.Stats.Pages)
	fmt.Fprintf(out, "  Pages failed:    %d\n", report.Stats.FailedPages)
	fmt.Fprintf(out, "  Documents:       %d\n", report.Stats.Documents)
	fmt.Fprintf(out, "  Chunks:          %d\n", report.Stats.Chunks)
	fmt.Fprintf(out, "  Avg chunk chars: %.0f\n", report.Stats.AvgChunkLen)
	fmt.Fprintf(out, "  Took:            %.1fs\n", report.Stats.BuildSeconds)

	if len(report.Failures) > 0 {
		fmt.Fprintf(out, "\nWarnings:\n")
		for _, f := range report.Failures {
			fmt.Fprintf(out, "  - %s: %s\n", f.URL, f.Error)
		}
	}
	return nil
}

func toStatsReport(s domain.Stats) statsReport {
	return statsReport{
		Pages:        s.Pages,
		FailedPages:  s.FailedPages,
		Documents:    s.Documents,
		Chunks:       s.Chunks,
		AvgChunkLen:  s.AvgChunkLen,
		BuildSeconds: s.BuildSeconds,
	}
}
