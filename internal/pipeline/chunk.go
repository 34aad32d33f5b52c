// Package pipeline runs the streaming NDJSON → Parquet conversion.
//
// Three stages are joined by bounded channels:
//
//	Chunk Source (read + split lines)
//	     → Transform (decode lines into records, bounded worker pool)
//	     → Columnar Sink (append batches, export once)
//
// Backpressure comes from the channel capacities alone: a slow sink blocks
// the transform on send, which blocks the source, so at most
// ChannelBuffer × ChunkSize rows wait at each boundary. End of stream is
// signalled by closing a stage's output channel, never by a sentinel value.
package pipeline

import "jsonl2parquet/internal/record"

const (
	DefaultChunkSize     = 20000
	DefaultChannelBuffer = 4
	DefaultReadBuffer    = 8 << 20
	DefaultProgressEvery = 100000
	DefaultErrorSamples  = 5
)

// LineChunk is an ordered batch of non-blank input lines. The source
// allocates a new chunk for every send and never touches it afterwards.
type LineChunk struct {
	Seq     int64
	Lines   [][]byte
	LineNos []int64 // 1-based physical line number of each entry in Lines
}

// RecordChunk holds the records decoded from one LineChunk, in line order.
// Chunks that decode to zero records are never sent.
type RecordChunk struct {
	Seq     int64
	Records []record.Record
}
