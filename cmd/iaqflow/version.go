package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/iaqflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of iaqflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("iaqflow version %s\n", strings.TrimSpace(iaqflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
