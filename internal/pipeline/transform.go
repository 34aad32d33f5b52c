package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"jsonl2parquet/internal/parser"
	"jsonl2parquet/internal/record"
)

// minLinesPerWorker keeps tiny chunks on a single goroutine.
const minLinesPerWorker = 512

// TransformConfig tunes RunTransform.
type TransformConfig struct {
	Decoder parser.LineDecoder
	Workers int
	// Errors collects decode failure samples; nil disables sampling.
	Errors *ErrAgg
}

// RunTransform decodes line chunks into record chunks. Chunks are handled in
// arrival order; inside a chunk lines are decoded by up to cfg.Workers
// goroutines, each writing into its own slot so record order matches line
// order. Lines that fail to decode are counted and dropped. out is closed
// once in is drained.
func RunTransform(ctx context.Context, in <-chan LineChunk, out chan<- RecordChunk, cfg TransformConfig, c *Counters) error {
	defer close(out)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	for lc := range in {
		if err := ctx.Err(); err != nil {
			drain(in)
			return err
		}

		recs := decodeChunk(lc, cfg.Decoder, workers, cfg.Errors, c)
		if len(recs) == 0 {
			continue
		}

		select {
		case out <- RecordChunk{Seq: lc.Seq, Records: recs}:
		case <-ctx.Done():
			drain(in)
			return ctx.Err()
		}
	}
	return nil
}

func decodeChunk(lc LineChunk, dec parser.LineDecoder, workers int, agg *ErrAgg, c *Counters) []record.Record {
	n := len(lc.Lines)
	if n == 0 {
		return nil
	}
	slots := make([]record.Record, n)

	span := (n + workers - 1) / workers
	if span < minLinesPerWorker {
		span = minLinesPerWorker
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += span {
		hi := min(lo+span, n)
		g.Go(func() error {
			var ok, bad int64
			for i := lo; i < hi; i++ {
				rec, err := dec.Decode(lc.Lines[i])
				if err != nil {
					bad++
					if agg != nil {
						agg.AddLine(lineNo(lc, i), err.Error())
					}
					continue
				}
				slots[i] = rec
				ok++
			}
			c.RecordsParsed.Add(ok)
			c.DecodeFailures.Add(bad)
			return nil
		})
	}
	// Workers never fail; decode errors are counted, not returned. The group
	// is only used for its SetLimit bound.
	_ = g.Wait()

	out := slots[:0]
	for _, r := range slots {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func lineNo(lc LineChunk, i int) int64 {
	if i < len(lc.LineNos) {
		return lc.LineNos[i]
	}
	return int64(i + 1)
}

func drain[T any](ch <-chan T) {
	for range ch {
	}
}
