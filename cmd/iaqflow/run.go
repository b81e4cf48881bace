package main

import (
	"fmt"
	"os"

	"github.com/aretw0/iaqflow/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Evaluate a sensor table and write the reports",
	Long: `Reads a wide or tidy CSV table (or JSON lines) of sensor frames, runs the engine
over it and writes the reports selected in the outputs section. Use "-" to read stdin.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		format, _ := cmd.Flags().GetString("input-format")
		outDir, _ := cmd.Flags().GetString("out")
		formats, _ := cmd.Flags().GetStringSlice("format")
		storeDir, _ := cmd.Flags().GetString("store")
		jsonMode, _ := cmd.Flags().GetBool("json")

		logger := newLogger(cmd)
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		_, err := cli.RunBatch(ctx, cli.RunOptions{
			ConfigPath:  configPath,
			Input:       args[0],
			InputFormat: format,
			OutputDir:   outDir,
			Formats:     formats,
			StoreDir:    storeDir,
			JSON:        jsonMode,
		}, os.Stdout, logger)
		if err != nil {
			if sig := ctx.Signal(); sig != nil {
				fmt.Printf("Interrupted by %v\n", sig)
			}
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input-format", "", "Input format: csv or jsonl (default: by extension)")
	runCmd.Flags().StringP("out", "o", "", "Output directory (overrides outputs.directory)")
	runCmd.Flags().StringSliceP("format", "f", nil, "Report formats: csv, json, xlsx, pdf (overrides outputs.formats)")
	runCmd.Flags().String("store", "", "Also keep the report as JSON in this directory")
	runCmd.Flags().Bool("json", false, "Print the full report as JSON instead of the summary")
}
