package columnar

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"jsonl2parquet/internal/schema"
)

// FileInfo summarizes a Parquet file on disk.
type FileInfo struct {
	Rows      int64
	RowGroups int
	Columns   []string
	Size      int64
}

// Inspect opens a Parquet file with an independent reader and reports its
// shape.
func Inspect(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return FileInfo{}, fmt.Errorf("read parquet %s: %w", path, err)
	}

	info := FileInfo{
		Rows:      pf.NumRows(),
		RowGroups: len(pf.RowGroups()),
		Size:      st.Size(),
	}
	for _, fld := range pf.Schema().Fields() {
		info.Columns = append(info.Columns, fld.Name())
	}
	return info, nil
}

// Verify checks that the file at path has wantRows rows and the columns of
// sch in order.
func Verify(path string, sch *schema.Schema, wantRows int64) (FileInfo, error) {
	info, err := Inspect(path)
	if err != nil {
		return info, err
	}
	if info.Rows != wantRows {
		return info, fmt.Errorf("verify %s: %d rows on disk, %d written", path, info.Rows, wantRows)
	}
	names := sch.Names()
	if len(info.Columns) != len(names) {
		return info, fmt.Errorf("verify %s: %d columns on disk, schema has %d", path, len(info.Columns), len(names))
	}
	for i, n := range names {
		if info.Columns[i] != n {
			return info, fmt.Errorf("verify %s: column %d is %q, want %q", path, i, info.Columns[i], n)
		}
	}
	return info, nil
}
