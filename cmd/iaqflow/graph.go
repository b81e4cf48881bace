package main

import (
	"fmt"
	"os"

	"github.com/aretw0/iaqflow/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the cycle state diagram",
	Long:  `Outputs a Mermaid diagram (stateDiagram-v2) of the configured cycles and the channels routed to them.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		reportPath, _ := cmd.Flags().GetString("report")

		output, err := cli.RenderGraph(configPath, reportPath)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(output)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("report", "", "JSON report whose cycles are highlighted")
}
