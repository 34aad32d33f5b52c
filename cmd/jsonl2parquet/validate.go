package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jsonl2parquet/internal/config"
	"jsonl2parquet/internal/datasource/file"
	"jsonl2parquet/internal/datasource/httpds"
)

func newValidateCmd(gf *globalFlags) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "validate [input...]",
		Short: "Check the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(cmd, gf, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if printIssues(out, config.ValidatePipeline(p)) {
				return errors.New("configuration is invalid")
			}
			if probe {
				if err := probeInputs(cmd.Context(), p, out); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "configuration is valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "check that every input exists and detect its compression")
	cmd.Flags().StringP("output", "o", "", "output Parquet file (single input)")
	cmd.Flags().String("output-dir", "", "output directory (one file per input)")
	return cmd
}

// probeInputs resolves every input and reports its detected compression.
func probeInputs(ctx context.Context, p config.Pipeline, out io.Writer) error {
	tasks, err := planTasks(p, zerolog.Nop())
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range tasks {
		codec, err := probeOne(ctx, t)
		if err != nil {
			fmt.Fprintf(out, "error: %s: %v\n", t.Input, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "input %s: compression=%s output=%s\n", t.Input, codec, t.Output)
	}
	return errors.Join(errs...)
}

func probeOne(ctx context.Context, t task) (file.Compression, error) {
	switch src := t.Source.(type) {
	case *httpds.Source:
		return src.Probe(ctx)
	case *file.Local:
		f, err := os.Open(src.Path())
		if err != nil {
			return "", err
		}
		rc, codec, err := file.Sniff(f)
		if err != nil {
			f.Close()
			return "", err
		}
		return codec, rc.Close()
	default:
		return "", fmt.Errorf("cannot probe %T", t.Source)
	}
}
