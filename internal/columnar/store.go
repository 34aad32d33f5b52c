package columnar

import (
	"context"

	"jsonl2parquet/internal/record"
	"jsonl2parquet/internal/schema"
)

// Store creates tables with declared columns.
type Store interface {
	CreateTable(s *schema.Schema) (Table, error)
}

// Table is an open, append-only columnar table.
type Table interface {
	// Schema returns the declared columns.
	Schema() *schema.Schema

	// Append adds rows as one batch. Rows whose shape does not match the
	// schema (see record.Check) are skipped; the number actually appended is
	// returned. A non-nil error means the batch was not appended at all.
	Append(rows []record.Record) (int, error)

	// NumRows returns the number of rows appended so far.
	NumRows() int64

	// NumBatches returns the number of batches appended so far.
	NumBatches() int

	// Export writes the table to path. It may be called once; the table
	// must not be appended to afterwards.
	Export(ctx context.Context, path string, opt ExportOptions) error

	// Release frees the memory held by the table.
	Release()
}
