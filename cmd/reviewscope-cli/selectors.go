package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var selectorsCmd = &cobra.Command{
	Use:   "selectors",
	Short: "Print the effective selector chains as YAML",
	Long:  "Print the built-in selector chains merged with any override file. The output is a valid override file to start editing from.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		selectors, err := loadSelectors(cmd)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(selectors)
	},
}

func init() {
	rootCmd.AddCommand(selectorsCmd)
}
