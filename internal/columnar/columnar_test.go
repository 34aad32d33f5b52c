package columnar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"jsonl2parquet/internal/record"
	"jsonl2parquet/internal/schema"
)

func peopleLite() *schema.Schema {
	return schema.MustNew("lite", []schema.Column{
		{Name: "id", Kind: schema.Text},
		{Name: "birth_year", Kind: schema.Int},
		{Name: "emails", Kind: schema.JSON},
	})
}

func newTable(t *testing.T, mem memory.Allocator) Table {
	t.Helper()
	tbl, err := (&ArrowStore{Mem: mem}).CreateTable(peopleLite())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return tbl
}

// readBack loads the id and birth_year columns of a Parquet file through
// pqarrow so tests can assert on values, not only on counts.
func readBack(t *testing.T, path string) (ids []string, years []any) {
	t.Helper()
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("arrow reader: %v", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	defer tbl.Release()

	for _, chunk := range tbl.Column(0).Data().Chunks() {
		s := chunk.(*array.String)
		for i := 0; i < s.Len(); i++ {
			ids = append(ids, s.Value(i))
		}
	}
	for _, chunk := range tbl.Column(1).Data().Chunks() {
		n := chunk.(*array.Int64)
		for i := 0; i < n.Len(); i++ {
			if n.IsNull(i) {
				years = append(years, nil)
				continue
			}
			years = append(years, n.Value(i))
		}
	}
	return ids, years
}

func TestArrowTable_AppendExportVerify(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t, mem)
	defer tbl.Release()

	n, err := tbl.Append([]record.Record{
		{"1", int64(1990), `[{"address":"a@b.c"}]`},
		{"2", nil, nil},
	})
	if err != nil || n != 2 {
		t.Fatalf("Append #1 = (%d,%v), want (2,nil)", n, err)
	}
	n, err = tbl.Append([]record.Record{
		{"3", "not an int", nil}, // wrong Go type: skipped
		{"4", int64(2001), nil},
		{"short"}, // wrong width: skipped
	})
	if err != nil || n != 1 {
		t.Fatalf("Append #2 = (%d,%v), want (1,nil)", n, err)
	}
	if tbl.NumRows() != 3 || tbl.NumBatches() != 2 {
		t.Fatalf("rows=%d batches=%d, want 3 and 2", tbl.NumRows(), tbl.NumBatches())
	}

	out := filepath.Join(t.TempDir(), "people.parquet")
	if err := tbl.Export(context.Background(), out, ExportOptions{Codec: CodecZstd, Level: 3}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	info, err := Verify(out, peopleLite(), 3)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if info.Size == 0 || info.RowGroups == 0 {
		t.Fatalf("unexpected file info: %+v", info)
	}

	ids, years := readBack(t, out)
	if strings.Join(ids, ",") != "1,2,4" {
		t.Fatalf("ids=%v, want [1 2 4]", ids)
	}
	if len(years) != 3 || years[0] != int64(1990) || years[1] != nil || years[2] != int64(2001) {
		t.Fatalf("birth_year=%v, want [1990 <nil> 2001]", years)
	}

	// No temp files left next to the output.
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Fatalf("output dir has %d entries, want only the parquet file", len(entries))
	}
}

func TestArrowTable_EmptyExport(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, memory.NewGoAllocator())
	defer tbl.Release()

	if n, err := tbl.Append(nil); n != 0 || err != nil {
		t.Fatalf("Append(nil)=(%d,%v), want (0,nil)", n, err)
	}
	if tbl.NumBatches() != 0 {
		t.Fatalf("empty append created a batch")
	}

	out := filepath.Join(t.TempDir(), "empty.parquet")
	if err := tbl.Export(context.Background(), out, ExportOptions{}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := Verify(out, peopleLite(), 0); err != nil {
		t.Fatalf("Verify empty: %v", err)
	}
}

func TestArrowTable_ExportFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, memory.NewGoAllocator())
	defer tbl.Release()
	if _, err := tbl.Append([]record.Record{{"1", nil, nil}}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "no-such-dir", "x.parquet")
	err := tbl.Export(context.Background(), out, ExportOptions{})
	if err == nil {
		t.Fatalf("Export into missing dir succeeded")
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("output exists after failed export: %v", statErr)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("leftover files after failed export: %d", len(entries))
	}
}

func TestArrowTable_ExportHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, memory.NewGoAllocator())
	defer tbl.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(t.TempDir(), "x.parquet")
	if err := tbl.Export(ctx, out, ExportOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Export err=%v, want context.Canceled", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output written despite canceled context")
	}
}

func TestArrowTable_ClosedAfterRelease(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, memory.NewGoAllocator())
	tbl.Release()
	if _, err := tbl.Append([]record.Record{{"1", nil, nil}}); !errors.Is(err, errTableClosed) {
		t.Fatalf("Append after Release err=%v, want errTableClosed", err)
	}
}

func TestParseCodec(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Codec{
		"":             CodecZstd,
		"ZSTD":         CodecZstd,
		"snappy":       CodecSnappy,
		"gz":           CodecGzip,
		"lz4_raw":      CodecLz4,
		"uncompressed": CodecNone,
		"brotli":       CodecBrotli,
	} {
		got, err := ParseCodec(in)
		if err != nil || got != want {
			t.Fatalf("ParseCodec(%q)=(%q,%v), want %q", in, got, err, want)
		}
	}
	if _, err := ParseCodec("lzo"); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("ParseCodec(lzo) err=%v, want ErrUnknownCodec", err)
	}
}

func TestExport_AllCodecs(t *testing.T) {
	t.Parallel()

	for _, c := range []Codec{CodecZstd, CodecSnappy, CodecGzip, CodecNone} {
		c := c
		t.Run(string(c), func(t *testing.T) {
			t.Parallel()
			tbl := newTable(t, memory.NewGoAllocator())
			defer tbl.Release()
			if _, err := tbl.Append([]record.Record{{"a", int64(1), `{}`}, {"b", int64(2), nil}}); err != nil {
				t.Fatalf("Append: %v", err)
			}
			out := filepath.Join(t.TempDir(), "t.parquet")
			if err := tbl.Export(context.Background(), out, ExportOptions{Codec: c, RowGroupSize: 1}); err != nil {
				t.Fatalf("Export(%s): %v", c, err)
			}
			info, err := Verify(out, peopleLite(), 2)
			if err != nil {
				t.Fatalf("Verify(%s): %v", c, err)
			}
			if info.RowGroups != 2 {
				t.Fatalf("row groups=%d, want 2 with RowGroupSize=1", info.RowGroups)
			}
		})
	}
}

func TestVerify_Mismatch(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, memory.NewGoAllocator())
	defer tbl.Release()
	if _, err := tbl.Append([]record.Record{{"a", nil, nil}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	out := filepath.Join(t.TempDir(), "t.parquet")
	if err := tbl.Export(context.Background(), out, ExportOptions{}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := Verify(out, peopleLite(), 5); err == nil || !strings.Contains(err.Error(), "rows on disk") {
		t.Fatalf("Verify row mismatch err=%v", err)
	}
	other := schema.MustNew("o", []schema.Column{{Name: "x"}})
	if _, err := Verify(out, other, 1); err == nil {
		t.Fatalf("Verify column mismatch succeeded")
	}
}
