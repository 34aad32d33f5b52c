package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"jsonl2parquet/internal/config"
	"jsonl2parquet/internal/logging"
	"jsonl2parquet/internal/metrics"
	"jsonl2parquet/internal/metrics/datadog"
	"jsonl2parquet/internal/metrics/prompush"
	"jsonl2parquet/internal/tracing"
)

// flagKeys maps command-line flags onto config keys. Flags missing from a
// command are skipped.
var flagKeys = map[string]string{
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"output":          "storage.parquet.path",
	"output-dir":      "storage.parquet.dir",
	"schema":          "storage.parquet.schema",
	"compression":     "storage.parquet.compression",
	"level":           "storage.parquet.level",
	"row-group-size":  "storage.parquet.row_group_size",
	"verify":          "storage.parquet.verify",
	"chunk-size":      "runtime.chunk_size",
	"buffer":          "runtime.channel_buffer",
	"workers":         "runtime.workers",
	"parallel":        "runtime.files_parallel",
	"profile":         "profile.path",
	"metrics-backend": "metrics.backend",
}

// loadPipeline resolves the config for cmd and replaces the configured
// inputs with inputs when any are given.
func loadPipeline(cmd *cobra.Command, gf *globalFlags, inputs []string) (config.Pipeline, error) {
	bound := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			bound[key] = f
		}
	}

	p, err := config.Load(config.LoadOptions{
		File:            gf.configPath,
		EnvFile:         gf.envFile,
		EnvFileRequired: cmd.Flags().Changed("env"),
		Flags:           bound,
	})
	if err != nil {
		return p, err
	}
	if err := applyInputs(&p, inputs); err != nil {
		return p, err
	}
	return p, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// applyInputs switches the source to the given inputs. URLs select the http
// source kind; mixing URLs and paths is an error.
func applyInputs(p *config.Pipeline, inputs []string) error {
	if len(inputs) == 0 {
		return nil
	}
	urls := 0
	for _, in := range inputs {
		if isURL(in) {
			urls++
		}
	}
	switch urls {
	case 0:
		p.Source.Kind = "file"
		p.Source.File.Path = ""
		p.Source.File.Paths = inputs
	case len(inputs):
		p.Source.Kind = "http"
		p.Source.HTTP.URL = ""
		p.Source.HTTP.URLs = inputs
	default:
		return fmt.Errorf("inputs mix %d URLs with %d paths", urls, len(inputs)-urls)
	}
	return nil
}

// printIssues writes issues in the "severity: path: message" form and
// reports whether any of them is an error.
func printIssues(w io.Writer, issues []config.Issue) bool {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	return config.HasErrors(issues)
}

// newRunLogger builds the logger for one invocation and tags it with a
// fresh run id. Pipelines of a batch share w; the process stderr defers to
// logging.output.
func newRunLogger(p config.Pipeline, w io.Writer) (zerolog.Logger, string) {
	runID := uuid.NewString()
	if w == os.Stderr {
		w = nil
	} else {
		w = zerolog.SyncWriter(w)
	}
	return logging.WithRun(logging.New(p.Logging, w), p.Job, runID), runID
}

// setupMetrics installs the configured backend and returns a func that
// flushes it. Backend init failures degrade to the nop backend.
func setupMetrics(m config.Metrics, job, runID string, log zerolog.Logger) func() {
	log = logging.WithComponent(log, "metrics")
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(job, m.PushgatewayURL,
			prompush.WithGrouping(logging.FieldRunID, runID),
			prompush.WithGrouping("instance", config.Hostname()))
		if err != nil {
			log.Warn().Err(err).Msg("failed to init pushgateway backend; using nop")
			return func() {}
		}
		log.Debug().Str("url", m.PushgatewayURL).Msg("pushgateway backend enabled")
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn().Err(err).Msg("flush failed")
			}
		}

	case "datadog":
		ns := m.Namespace
		if ns != "" && !strings.HasSuffix(ns, ".") {
			ns += "."
		}
		tags := append([]string{"host:" + config.Hostname(), "job:" + job}, m.Tags...)
		b, err := datadog.NewBackend(datadog.Config{Addr: m.DatadogAddr, Namespace: ns, GlobalTags: tags})
		if err != nil {
			log.Warn().Err(err).Msg("failed to init datadog backend; using nop")
			return func() {}
		}
		log.Debug().Str("addr", m.DatadogAddr).Msg("datadog backend enabled")
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn().Err(err).Msg("flush failed")
			}
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("close failed")
			}
		}

	default:
		log.Debug().Str("backend", m.Backend).Msg("metrics disabled")
		return func() {}
	}
}

// setupTracing installs the configured tracer provider globally and returns
// a func that flushes pending spans. Init failures leave the no-op provider.
func setupTracing(ctx context.Context, tc tracing.Config, job string, log zerolog.Logger) func() {
	log = logging.WithComponent(log, "tracing")
	if !tc.Enabled() {
		log.Debug().Str("exporter", tc.Exporter).Msg("tracing disabled")
		return func() {}
	}
	tp, err := tracing.New(ctx, tc, job)
	if err != nil {
		log.Warn().Err(err).Msg("failed to init tracer; spans are dropped")
		return func() {}
	}
	tracing.Install(tp)
	log.Debug().Str("endpoint", tc.Endpoint).Msg("otlp tracing enabled")
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}
}
