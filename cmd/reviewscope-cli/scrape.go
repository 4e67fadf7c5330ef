package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/reviewscope/extract"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape one listing page and print its reviews",
	Long: `Launch a browser on the configured profile, open the listing page, activate
its reviews tab, scroll to convergence and print the extraction result.

Examples:
  # Scrape with defaults, headless
  reviewscope scrape https://yandex.ru/maps/org/example/1234567890/reviews/

  # Watch the browser work and include diagnostics
  reviewscope scrape --headless=false --diagnostics https://example.com/place/1`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	f := scrapeCmd.Flags()
	f.Duration("timeout", 0, "overall deadline (overrides REVIEWSCOPE_INVOCATION_TIMEOUT)")
	f.Bool("headless", true, "run the browser headless")
	f.String("profile", "", "profile directory (overrides REVIEWSCOPE_PROFILE_DIR)")
	f.Bool("diagnostics", false, "wrap the result with extraction diagnostics")
	f.Bool("pretty", true, "indent JSON output")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	if f.Changed("headless") {
		cfg.Browser.Headless, _ = f.GetBool("headless")
	}
	if v, _ := f.GetString("profile"); v != "" {
		cfg.Browser.ProfileDir = v
	}
	if v, _ := f.GetDuration("timeout"); v > 0 {
		cfg.Scraper.InvocationTimeout = v
	}
	cfg.Browser.MaxSessions = 1

	selectors, err := loadSelectors(cmd)
	if err != nil {
		return err
	}

	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper, selectors)
	if err != nil {
		return fmt.Errorf("init scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, diag, err := sc.ScrapeReviews(ctx, args[0])
	if err != nil {
		return err
	}

	var out any = result
	if withDiag, _ := f.GetBool("diagnostics"); withDiag {
		out = struct {
			*models.ExtractionResult
			Diagnostics *models.Diagnostics `json:"diagnostics"`
			ElapsedMs   int64               `json:"elapsed_ms"`
		}{result, diag, time.Since(start).Milliseconds()}
	}

	pretty, _ := f.GetBool("pretty")
	return writeJSON(cmd, out, pretty)
}

// loadSelectors resolves the --selectors flag, then the configured file,
// then the built-in chains.
func loadSelectors(cmd *cobra.Command) (extract.Selectors, error) {
	path, _ := cmd.Flags().GetString("selectors")
	if path == "" {
		path = cfg.Scraper.SelectorsFile
	}
	if path == "" {
		return extract.DefaultSelectors(), nil
	}
	return extract.LoadSelectors(path)
}

func writeJSON(cmd *cobra.Command, v any, pretty bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
