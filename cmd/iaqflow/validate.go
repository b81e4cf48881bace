package main

import (
	"fmt"
	"os"

	"github.com/aretw0/iaqflow/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for consistency",
	Long:  `Loads the configuration, validates it against the schema and the semantic rules, and reports every problem found.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, errs := cli.Validate(configPath)
		if len(errs) > 0 {
			fmt.Printf("Validation failed: %d problem(s)\n", len(errs))
			for _, err := range errs {
				fmt.Printf("  - %v\n", err)
			}
			os.Exit(1)
		}
		fmt.Printf("Configuration is valid: %d channel(s), %d cycle(s)\n", len(cfg.Channels), len(cfg.Cycles))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
