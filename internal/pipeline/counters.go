package pipeline

import "sync/atomic"

// Counters holds cross-goroutine statistics for one run. Every field has a
// single writer stage; other goroutines only read them.
//
//	LinesRead      == RecordsParsed + DecodeFailures
//	RecordsParsed  == RowsWritten + RowsRejected
type Counters struct {
	LinesRead      atomic.Int64 // non-blank lines emitted by the source
	BlankLines     atomic.Int64 // whitespace-only lines skipped by the source
	Chunks         atomic.Int64 // line chunks sent by the source
	RecordsParsed  atomic.Int64 // lines decoded into a record
	DecodeFailures atomic.Int64 // lines the decoder rejected
	RowsWritten    atomic.Int64 // rows appended to the table
	RowsRejected   atomic.Int64 // records the table refused
	Batches        atomic.Int64 // record batches appended
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	LinesRead      int64 `json:"lines_read"`
	BlankLines     int64 `json:"blank_lines"`
	Chunks         int64 `json:"chunks"`
	RecordsParsed  int64 `json:"records_parsed"`
	DecodeFailures int64 `json:"decode_failures"`
	RowsWritten    int64 `json:"rows_written"`
	RowsRejected   int64 `json:"rows_rejected"`
	Batches        int64 `json:"batches"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		LinesRead:      c.LinesRead.Load(),
		BlankLines:     c.BlankLines.Load(),
		Chunks:         c.Chunks.Load(),
		RecordsParsed:  c.RecordsParsed.Load(),
		DecodeFailures: c.DecodeFailures.Load(),
		RowsWritten:    c.RowsWritten.Load(),
		RowsRejected:   c.RowsRejected.Load(),
		Batches:        c.Batches.Load(),
	}
}

// Balanced reports whether every line read is accounted for. It only holds
// once all stages have returned.
func (s Snapshot) Balanced() bool {
	return s.LinesRead == s.RecordsParsed+s.DecodeFailures &&
		s.RecordsParsed == s.RowsWritten+s.RowsRejected
}
