package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"jsonl2parquet/internal/columnar"
	"jsonl2parquet/internal/record"
)

// Observer receives every record chunk the sink consumes, before the append.
// It runs on the sink goroutine and must not retain the slice.
type Observer interface {
	Observe(records []record.Record)
}

// SinkConfig wires RunSink.
type SinkConfig struct {
	In       <-chan RecordChunk
	Table    columnar.Table
	Output   string
	Export   columnar.ExportOptions
	Verify   bool
	Progress *Progress
	Observer Observer
	Counters *Counters
	Log      zerolog.Logger

	// Upstream, if set, delivers the source and transform outcome after both
	// have returned. The sink waits for it once In closes and skips the
	// export when it carries an error.
	Upstream <-chan error
}

// RunSink appends every record chunk to the table as one batch and exports
// the table exactly once when the input closes. Records the table refuses
// are counted as rejected.
//
// An output that fails verification is removed before the error is returned.
//
// On context cancellation the remaining input is drained without appending
// and nothing is exported.
func RunSink(ctx context.Context, cfg SinkConfig) error {
	c := cfg.Counters

	for rc := range cfg.In {
		if err := ctx.Err(); err != nil {
			drain(cfg.In)
			return err
		}
		if cfg.Observer != nil {
			cfg.Observer.Observe(rc.Records)
		}

		n, err := cfg.Table.Append(rc.Records)
		if err != nil {
			drain(cfg.In)
			return fmt.Errorf("append chunk %d: %w", rc.Seq, err)
		}
		c.RowsWritten.Add(int64(n))
		if rejected := len(rc.Records) - n; rejected > 0 {
			c.RowsRejected.Add(int64(rejected))
			cfg.Log.Debug().Int64("chunk", rc.Seq).Int("rejected", rejected).Msg("rows rejected by table")
		}
		if n > 0 {
			c.Batches.Add(1)
		}
		cfg.Progress.Update(c.RowsWritten.Load())
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if cfg.Upstream != nil {
		select {
		case uerr := <-cfg.Upstream:
			if uerr != nil {
				cfg.Log.Warn().Err(uerr).Str("output", cfg.Output).Msg("upstream failed, skipping export")
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := cfg.Table.Export(ctx, cfg.Output, cfg.Export); err != nil {
		return &StageError{Stage: StageFlush, Err: err}
	}
	if cfg.Verify {
		info, err := columnar.Verify(cfg.Output, cfg.Table.Schema(), cfg.Table.NumRows())
		if err != nil {
			if rmErr := os.Remove(cfg.Output); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				cfg.Log.Warn().Err(rmErr).Str("output", cfg.Output).Msg("remove unverified output")
			}
			return &StageError{Stage: StageFlush, Err: fmt.Errorf("verify: %w", err)}
		}
		cfg.Log.Debug().Int64("rows", info.Rows).Int("row_groups", info.RowGroups).Int64("bytes", info.Size).Msg("output verified")
	}
	return nil
}
