// Package parser defines the contract between the pipeline and concrete line
// decoders.
package parser

import "jsonl2parquet/internal/record"

// LineDecoder turns one input line into a record. Implementations must be
// pure and safe for concurrent use: the transform stage calls Decode from
// several goroutines at once without coordination.
//
// A non-nil error means the line is dropped. Callers count it and move on;
// it is never fatal and the line is never retried.
type LineDecoder interface {
	Decode(line []byte) (record.Record, error)
}
