// Command jsonl2parquet converts newline-delimited JSON into Parquet files
// through a chunked source → transform → sink pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// main is the entry point for the converter binary. Interrupts cancel the
// running pipelines; a failed run exits non-zero.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:           "jsonl2parquet",
		Short:         "Convert newline-delimited JSON to Parquet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&gf.configPath, "config", "c", "", "pipeline config file (json, yaml or toml)")
	root.PersistentFlags().StringVar(&gf.envFile, "env", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console or json)")

	root.AddCommand(newRunCmd(&gf), newValidateCmd(&gf), newSchemaCmd(&gf))
	return root
}
