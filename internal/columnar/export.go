package columnar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Export writes the table as Parquet. The data goes to a hidden temp file in
// the destination directory, is synced, and is renamed over path only once
// complete.
func (t *arrowTable) Export(ctx context.Context, path string, opt ExportOptions) (err error) {
	if t.closed {
		return errTableClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	codec, err := opt.Codec.parquet()
	if err != nil {
		return err
	}
	rowGroup := opt.RowGroupSize
	if rowGroup <= 0 {
		rowGroup = DefaultRowGroupSize
	}
	popts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithMaxRowGroupLength(rowGroup),
		parquet.WithCreatedBy("jsonl2parquet"),
	}
	if opt.Level != 0 {
		popts = append(popts, parquet.WithCompressionLevel(opt.Level))
	}
	props := parquet.NewWriterProperties(popts...)

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp output in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	tbl := array.NewTableFromRecords(t.as, t.batches)
	defer tbl.Release()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	// pqarrow closes sinks that implement io.Closer; hide Close so the file
	// stays open for Sync.
	sink := struct{ io.Writer }{bw}
	if err = pqarrow.WriteTable(tbl, sink, rowGroup, props, pqarrow.DefaultWriterProps()); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}
