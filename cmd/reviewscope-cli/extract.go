package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/reviewscope/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.html>",
	Short: "Run the extraction engine on a saved page",
	Long: `Apply the selector chains to a saved DOM snapshot without launching a
browser. Useful for checking selector overrides against a page captured
after a site redesign.

Examples:
  reviewscope extract --url https://yandex.ru/maps/org/1/ page.html
  reviewscope extract --selectors fixes.yaml page.html`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.String("url", "", "page URL used to resolve relative avatar and photo links")
	f.Bool("diagnostics", false, "wrap the result with extraction diagnostics")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	selectors, err := loadSelectors(cmd)
	if err != nil {
		return err
	}
	ex, err := extract.New(selectors)
	if err != nil {
		return err
	}

	pageURL, _ := cmd.Flags().GetString("url")
	extraction, err := ex.Extract(string(raw), pageURL)
	if err != nil {
		return err
	}
	result := extract.Assemble(extraction)

	if withDiag, _ := cmd.Flags().GetBool("diagnostics"); withDiag {
		return writeJSON(cmd, map[string]any{
			"reviews":     result.Reviews,
			"rating":      result.Rating,
			"reviewCount": result.ReviewCount,
			"diagnostics": extraction.Diagnostics,
		}, true)
	}
	return writeJSON(cmd, result, true)
}
