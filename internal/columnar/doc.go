// Package columnar is the output side of the pipeline: an append-only,
// in-memory columnar table and its one-shot export to a compressed Parquet
// file.
//
// The table is built on Apache Arrow. Every Append turns one chunk of
// records into one Arrow record batch, so the table grows strictly by whole
// chunks. Export concatenates the batches into an arrow.Table and writes it
// with pqarrow. The file appears at its final path only after it has been
// completely written and synced; a failed export leaves nothing behind.
//
// Tables are not safe for concurrent use. The pipeline's sink goroutine owns
// its table from creation to export.
package columnar
