package main

import (
	"fmt"
	"os"

	"github.com/aretw0/iaqflow"
	"github.com/aretw0/iaqflow/internal/cli"
	"github.com/aretw0/iaqflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the engine behind a JSON API: upload frame tables, browse stored runs, stream events and scrape metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		port, _ := cmd.Flags().GetString("port")
		storeDir, _ := cmd.Flags().GetString("store")
		writeReports, _ := cmd.Flags().GetBool("write-reports")

		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, iaqflow.Version)
		}

		logger := newLogger(cmd)
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		err := cli.Serve(ctx, cli.ServeOptions{
			ConfigPath:   configPath,
			Addr:         ":" + port,
			StoreDir:     storeDir,
			WriteReports: writeReports,
		}, logger)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if sig := ctx.Signal(); sig != nil {
			fmt.Printf("Stopped by %v\n", sig)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("store", "", "Keep runs as JSON files in this directory (default: memory, or Redis when configured)")
	serveCmd.Flags().Bool("write-reports", false, "Also write every run to the configured outputs")
}
