package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"jsonl2parquet/internal/columnar"
	"jsonl2parquet/internal/datasource"
	"jsonl2parquet/internal/metrics"
	"jsonl2parquet/internal/parser"
	"jsonl2parquet/internal/parser/ndjson"
	"jsonl2parquet/internal/schema"
)

const tracerName = "jsonl2parquet/internal/pipeline"

// Options configures one conversion run.
type Options struct {
	Job    string
	Source datasource.Source
	Output string
	Schema *schema.Schema

	// Decoder defaults to an ndjson decoder over Schema using HeaderMap.
	Decoder   parser.LineDecoder
	HeaderMap map[string]string

	// Store defaults to an Arrow store on the Go allocator.
	Store  columnar.Store
	Export columnar.ExportOptions
	Verify bool

	ChunkSize     int
	ChannelBuffer int
	Workers       int
	ReadBuffer    int
	ProgressEvery int64
	ErrorSamples  int

	Observer Observer
	Log      zerolog.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

func (o *Options) applyDefaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChannelBuffer <= 0 {
		o.ChannelBuffer = DefaultChannelBuffer
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = DefaultReadBuffer
	}
	if o.ErrorSamples <= 0 {
		o.ErrorSamples = DefaultErrorSamples
	}
	if o.Store == nil {
		o.Store = columnar.NewArrowStore()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
	if o.Decoder == nil && o.Schema != nil {
		o.Decoder = ndjson.NewDecoder(o.Schema, ndjson.Options{HeaderMap: o.HeaderMap})
	}
}

func (o *Options) validate() error {
	var errs []error
	if o.Source == nil {
		errs = append(errs, errors.New("source is required"))
	}
	if o.Output == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if o.Schema == nil || o.Schema.Len() == 0 {
		errs = append(errs, schema.ErrEmptySchema)
	}
	return errors.Join(errs...)
}

// Result summarizes a run. It is returned on failure too, with whatever the
// counters reached.
type Result struct {
	Job         string
	Output      string
	State       State
	FailedStage Stage
	Counters    Snapshot
	Duration    time.Duration
	RowsPerSec  float64
	InputDigest uint64

	DecodeSamples []string
	DecodeReasons map[string]int64
}

// Run executes source → transform → sink for a single input and blocks
// until all three stages have returned. The first stage error wins; the
// other stages are not cancelled but drain their inputs and exit.
func Run(ctx context.Context, opt Options) (res Result, err error) {
	opt.applyDefaults()
	res = Result{Job: opt.Job, Output: opt.Output, State: Idle}
	if err := opt.validate(); err != nil {
		res.State = Failed
		return res, fmt.Errorf("pipeline options: %w", err)
	}

	log := opt.Log.With().Str("component", "pipeline").Str("output", opt.Output).Logger()
	tracer := opt.TracerProvider.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("job", opt.Job),
		attribute.String("output", opt.Output),
		attribute.Int("chunk_size", opt.ChunkSize),
		attribute.Int("channel_buffer", opt.ChannelBuffer),
	))

	var (
		state    stateBox
		counters Counters
		digest   = xxh3.New()
		agg      = NewErrAgg(opt.ErrorSamples)
		start    = time.Now()
	)
	state.advance(Idle, Running)

	defer func() {
		res.State = state.finish(err)
		res.FailedStage = StageOf(err)
		res.Counters = counters.Snapshot()
		res.Duration = time.Since(start)
		res.RowsPerSec = Rate(res.Counters.RowsWritten, res.Duration)
		res.InputDigest = digest.Sum64()
		res.DecodeSamples = agg.Samples()
		res.DecodeReasons = agg.Reasons()

		recordMetrics(opt.Job, res, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("failed_stage", string(res.FailedStage)))
		}
		span.SetAttributes(
			attribute.Int64("rows_written", res.Counters.RowsWritten),
			attribute.String("state", res.State.String()),
		)
		span.End()
	}()

	rc, err := opt.Source.Open(ctx)
	if err != nil {
		return res, wrapStage(StageSource, err)
	}
	defer rc.Close()

	table, err := opt.Store.CreateTable(opt.Schema)
	if err != nil {
		return res, wrapStage(StageSink, fmt.Errorf("create table: %w", err))
	}
	defer table.Release()

	log.Info().
		Int("chunk_size", opt.ChunkSize).
		Int("channel_buffer", opt.ChannelBuffer).
		Int("workers", opt.Workers).
		Str("schema", opt.Schema.Name).
		Int("columns", opt.Schema.Len()).
		Msg("pipeline started")

	lineCh := make(chan LineChunk, opt.ChannelBuffer)
	recCh := make(chan RecordChunk, opt.ChannelBuffer)
	// upstream receives the source and transform outcome after both have
	// returned; the sink exports only when it is nil.
	upstream := make(chan error, 1)

	var up errgroup.Group
	up.Go(func() error {
		defer state.advance(Running, Draining)
		sctx, sp := tracer.Start(ctx, "pipeline.source")
		defer sp.End()
		err := RunSource(sctx, rc, SourceConfig{
			ChunkSize:  opt.ChunkSize,
			ReadBuffer: opt.ReadBuffer,
			Digest:     digest,
		}, lineCh, &counters)
		if err != nil {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, err.Error())
		}
		return wrapStage(StageSource, err)
	})
	up.Go(func() error {
		tctx, sp := tracer.Start(ctx, "pipeline.transform")
		defer sp.End()
		err := RunTransform(tctx, lineCh, recCh, TransformConfig{
			Decoder: opt.Decoder,
			Workers: opt.Workers,
			Errors:  agg,
		}, &counters)
		if err != nil {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, err.Error())
		}
		return wrapStage(StageTransform, err)
	})

	var g errgroup.Group
	g.Go(func() error {
		err := up.Wait()
		upstream <- err
		return err
	})
	g.Go(func() error {
		kctx, sp := tracer.Start(ctx, "pipeline.sink")
		defer sp.End()
		err := RunSink(kctx, SinkConfig{
			In:       recCh,
			Table:    table,
			Output:   opt.Output,
			Export:   opt.Export,
			Verify:   opt.Verify,
			Progress: NewProgress(log, opt.ProgressEvery),
			Observer: opt.Observer,
			Counters: &counters,
			Log:      log.With().Str("component", "sink").Logger(),
			Upstream: upstream,
		})
		if err != nil {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, err.Error())
		}
		return wrapStage(StageSink, err)
	})

	if err = g.Wait(); err != nil {
		logSummary(log, counters.Snapshot(), agg, time.Since(start), err)
		return res, err
	}
	logSummary(log, counters.Snapshot(), agg, time.Since(start), nil)
	return res, nil
}

// logSummary prints the end-of-run statistics and the first decode failure
// samples.
func logSummary(log zerolog.Logger, s Snapshot, agg *ErrAgg, elapsed time.Duration, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err).Str("stage", string(StageOf(err)))
	}
	ev.
		Int64("lines_read", s.LinesRead).
		Int64("blank_lines", s.BlankLines).
		Int64("records_parsed", s.RecordsParsed).
		Int64("decode_failures", s.DecodeFailures).
		Int64("rows_written", s.RowsWritten).
		Int64("rows_rejected", s.RowsRejected).
		Int64("batches", s.Batches).
		Dur("elapsed", elapsed).
		Msgf("summary: %s rows written at %s rows/sec", FormatCount(s.RowsWritten), FormatRate(Rate(s.RowsWritten, elapsed)))

	if n := agg.Count(); n > 0 {
		samples := agg.Samples()
		log.Warn().Int64("count", n).Msgf("decode failures: %d (showing first %d)", n, len(samples))
		for i, msg := range samples {
			log.Warn().Msgf("  #%03d: %s", i+1, msg)
		}
		reasons := agg.Reasons()
		for _, k := range agg.ReasonKeys() {
			log.Warn().Str("reason", k).Int64("count", reasons[k]).Msg("decode failure reason")
		}
	}
	if err == nil && !s.Balanced() {
		log.Warn().
			Int64("lines_read", s.LinesRead).
			Int64("accounted", s.RowsWritten+s.RowsRejected+s.DecodeFailures).
			Msg("row accounting mismatch")
	}
}

func recordMetrics(job string, res Result, err error) {
	s := res.Counters
	metrics.RecordStep(job, "run", err, res.Duration)
	metrics.RecordRow(job, "lines_read", s.LinesRead)
	metrics.RecordRow(job, "blank_lines", s.BlankLines)
	metrics.RecordRow(job, "records_parsed", s.RecordsParsed)
	metrics.RecordRow(job, "decode_failures", s.DecodeFailures)
	metrics.RecordRow(job, "rows_written", s.RowsWritten)
	metrics.RecordRow(job, "rows_rejected", s.RowsRejected)
	metrics.RecordBatches(job, s.Batches)
}
