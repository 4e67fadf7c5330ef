package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/reviewscope/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reviewscope",
	Short: "Extract reviews from business-listing pages",
	Long:  "Drives a real browser through a listing page, opens its reviews tab, scrolls until the list stops growing and prints the reviews as JSON.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(); err != nil {
			return err
		}
		cfg = config.Load()
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			cfg.Log.Level = v
		}
		// stdout carries the JSON result.
		config.InitLogger(cfg.Log, os.Stderr)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides REVIEWSCOPE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("selectors", "", "YAML selector overrides (overrides REVIEWSCOPE_SELECTORS_FILE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
