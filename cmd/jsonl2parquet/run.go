package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"jsonl2parquet/internal/columnar"
	"jsonl2parquet/internal/config"
	"jsonl2parquet/internal/datasource"
	"jsonl2parquet/internal/datasource/file"
	"jsonl2parquet/internal/datasource/httpds"
	"jsonl2parquet/internal/logging"
	"jsonl2parquet/internal/metrics"
	"jsonl2parquet/internal/pipeline"
	"jsonl2parquet/internal/profile"
	"jsonl2parquet/internal/schema"
)

func newRunCmd(gf *globalFlags) *cobra.Command {
	var inputs []string
	cmd := &cobra.Command{
		Use:   "run [input...]",
		Short: "Convert one or more NDJSON inputs to Parquet",
		Long: `Convert NDJSON inputs (plain, gzip, zstd or xz; local paths, globs,
@list files or http(s) URLs) to Parquet. Each input runs its own pipeline;
with several inputs, outputs go to --output-dir as <base>.parquet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(cmd, gf, append(inputs, args...))
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), p, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&inputs, "input", "i", nil, "input path, glob, @list file or URL (repeatable)")
	f.StringP("output", "o", "", "output Parquet file (single input)")
	f.String("output-dir", "", "output directory (one file per input)")
	f.String("schema", "people", "built-in schema name")
	f.Int("chunk-size", pipeline.DefaultChunkSize, "lines per chunk")
	f.Int("buffer", pipeline.DefaultChannelBuffer, "chunks buffered between stages")
	f.Int("workers", 0, "decode workers per chunk (0 = NumCPU)")
	f.Int("parallel", 1, "inputs converted concurrently")
	f.String("compression", "zstd", "parquet codec (zstd, snappy, gzip, brotli, lz4, none)")
	f.Int("level", 0, "codec compression level (0 = codec default)")
	f.Int64("row-group-size", 0, "max rows per row group (0 = default)")
	f.Bool("verify", false, "re-read each output and check its row count")
	f.String("profile", "", "write a field profile report to this JSON file")
	f.String("metrics-backend", "none", "metrics backend (none, pushgateway, datadog)")
	return cmd
}

// task is one input → output conversion.
type task struct {
	Input  string
	Output string
	Source datasource.Source
}

// fileResult is the outcome of one task.
type fileResult struct {
	Input   string
	Output  string
	Result  pipeline.Result
	Profile *profile.Report
	Err     error
}

// planTasks expands the configured inputs and names one output per input.
// HTTP retries are logged to log.
func planTasks(p config.Pipeline, log zerolog.Logger) ([]task, error) {
	pq := p.Storage.Parquet

	var tasks []task
	switch p.Source.Kind {
	case "http":
		codec, err := file.ParseCompression(p.Source.HTTP.Compression)
		if err != nil {
			return nil, err
		}
		hdr := make(http.Header, len(p.Source.HTTP.Headers))
		for k, v := range p.Source.HTTP.Headers {
			hdr.Set(k, v)
		}
		client := httpds.NewClient(httpds.Config{
			Timeout:            p.Source.HTTP.Timeout,
			MaxRetries:         p.Source.HTTP.MaxRetries,
			InsecureSkipVerify: p.Source.HTTP.InsecureSkipVerify,
			BaseHeaders:        hdr,
			Stream:             true,
			OnRetry: func(retry int, wait time.Duration, err error) {
				log.Warn().Err(err).Int("retry", retry).Dur("wait", wait).Msg("http request failed; retrying")
			},
		})
		for _, u := range p.Inputs() {
			tasks = append(tasks, task{
				Input:  u,
				Output: filepath.Join(pq.Dir, httpds.OutputBase(u)+".parquet"),
				Source: httpds.NewSource(client, u).WithCompression(codec),
			})
		}

	default:
		codec, err := file.ParseCompression(p.Source.File.Compression)
		if err != nil {
			return nil, err
		}
		paths, err := file.ExpandInputs(p.Inputs())
		if err != nil {
			return nil, err
		}
		for _, in := range paths {
			tasks = append(tasks, task{
				Input:  in,
				Output: file.OutputPath(pq.Dir, in),
				Source: file.NewLocal(in).WithCompression(codec),
			})
		}
	}

	switch {
	case len(tasks) == 0:
		return nil, errors.New("no inputs")
	case len(tasks) == 1 && pq.Path != "":
		tasks[0].Output = pq.Path
	case len(tasks) > 1 && pq.Dir == "":
		return nil, fmt.Errorf("%d inputs need --output-dir", len(tasks))
	}

	seen := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if prev, dup := seen[t.Output]; dup {
			return nil, fmt.Errorf("inputs %s and %s both write %s", prev, t.Input, t.Output)
		}
		seen[t.Output] = t.Input
	}
	return tasks, nil
}

// runConvert validates p, converts every input and writes one result line
// per input to out. It fails when any input failed.
func runConvert(ctx context.Context, p config.Pipeline, out, errOut io.Writer) error {
	if printIssues(errOut, config.ValidatePipeline(p)) {
		return errors.New("configuration is invalid")
	}

	log, runID := newRunLogger(p, errOut)
	flush := setupMetrics(p.Metrics, p.Job, runID, log)
	defer flush()
	stopTracing := setupTracing(ctx, p.Tracing, p.Job, log)
	defer stopTracing()

	sch, err := p.ResolveSchema()
	if err != nil {
		return err
	}
	codec, err := columnar.ParseCodec(p.Storage.Parquet.Compression)
	if err != nil {
		return err
	}
	tasks, err := planTasks(p, logging.WithComponent(log, "source"))
	if err != nil {
		return err
	}

	log.Info().
		Int("inputs", len(tasks)).
		Int("parallel", p.Runtime.FilesParallel).
		Str("schema", sch.Name).
		Str("compression", string(codec)).
		Msg("run started")

	ctx, span := otel.Tracer("jsonl2parquet/cmd").Start(ctx, "jsonl2parquet.batch", trace.WithAttributes(
		attribute.String(logging.FieldRunID, runID),
		attribute.String(logging.FieldJob, p.Job),
		attribute.Int("inputs", len(tasks)),
	))
	defer span.End()

	start := time.Now()
	results := make([]fileResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(p.Runtime.FilesParallel)
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = convertOne(ctx, p, sch, codec, t, log)
			return nil
		})
	}
	_ = g.Wait()

	failed := summarize(log, out, results, time.Since(start))
	span.SetAttributes(attribute.Int("failed", failed))

	if p.Profile.Path != "" {
		var reports []profile.Report
		for _, r := range results {
			if r.Profile != nil {
				reports = append(reports, *r.Profile)
			}
		}
		if len(reports) > 0 {
			rep := profile.Merge(reports...)
			if err := rep.WriteJSON(p.Profile.Path); err != nil {
				return fmt.Errorf("write profile: %w", err)
			}
			log.Info().Str("path", p.Profile.Path).Float64("fill_ratio", rep.FillRatio()).Msg("profile written")
		}
	}

	if failed > 0 {
		return fmt.Errorf("run %s: %d of %d inputs failed", runID, failed, len(results))
	}
	return nil
}

// convertOne runs the pipeline for a single task.
func convertOne(ctx context.Context, p config.Pipeline, sch *schema.Schema, codec columnar.Codec, t task, log zerolog.Logger) fileResult {
	fr := fileResult{Input: t.Input, Output: t.Output}
	log = log.With().Str("input", t.Input).Logger()

	var obs *profile.Observer
	if p.Profile.Path != "" {
		var err error
		obs, err = profile.NewObserver(sch, p.Profile.Fields, p.Profile.MaxDistinct)
		if err != nil {
			fr.Err = err
			metrics.RecordFile(p.Job, err)
			return fr
		}
	}

	opt := pipeline.Options{
		Job:       p.Job,
		Source:    t.Source,
		Output:    t.Output,
		Schema:    sch,
		HeaderMap: p.HeaderMap(),
		Export: columnar.ExportOptions{
			Codec:        codec,
			Level:        p.Storage.Parquet.Level,
			RowGroupSize: p.Storage.Parquet.RowGroupSize,
		},
		Verify:        p.Storage.Parquet.Verify,
		ChunkSize:     p.Runtime.ChunkSize,
		ChannelBuffer: p.Runtime.ChannelBuffer,
		Workers:       p.Runtime.Workers,
		ReadBuffer:    p.Runtime.ReadBuffer,
		ProgressEvery: p.Runtime.ProgressEvery,
		ErrorSamples:  p.Runtime.ErrorSamples,
		Log:           log,
	}
	if obs != nil {
		opt.Observer = obs
	}

	fr.Result, fr.Err = pipeline.Run(ctx, opt)
	metrics.RecordFile(p.Job, fr.Err)
	if obs != nil && fr.Err == nil {
		rep := obs.Report()
		fr.Profile = &rep
	}
	return fr
}

// summarize writes one line per input to out, logs the batch totals and
// returns the number of failed inputs.
func summarize(log zerolog.Logger, out io.Writer, results []fileResult, elapsed time.Duration) int {
	var (
		failed int
		rows   int64
		fails  int64
	)
	for _, r := range results {
		c := r.Result.Counters
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", r.Input, r.Err)
			continue
		}
		rows += c.RowsWritten
		fails += c.DecodeFailures
		fmt.Fprintf(out, "ok   %s -> %s rows=%d decode_failures=%d elapsed=%s\n",
			r.Input, r.Output, c.RowsWritten, c.DecodeFailures, r.Result.Duration.Truncate(time.Millisecond))
	}

	log = logging.WithComponent(log, "batch")
	ev := log.Info()
	if failed > 0 {
		ev = log.Warn()
	}
	ev.
		Int("files_ok", len(results)-failed).
		Int("files_failed", failed).
		Int64("rows_written", rows).
		Int64("decode_failures", fails).
		Dur("elapsed", elapsed).
		Msgf("batch summary: %s rows written at %s rows/sec",
			pipeline.FormatCount(rows), pipeline.FormatRate(pipeline.Rate(rows, elapsed)))
	return failed
}
