package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"jsonl2parquet/internal/columnar"
	"jsonl2parquet/internal/record"
	"jsonl2parquet/internal/schema"
)

func testSchema() *schema.Schema {
	return schema.MustNew("test", []schema.Column{
		{Name: "id", Kind: schema.Text},
		{Name: "n", Kind: schema.Int},
		{Name: "tags", Kind: schema.JSON},
	})
}

// stringSource serves a fixed payload.
type stringSource struct{ data string }

func (s stringSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.data)), nil
}

// failingOpen fails before any byte is read.
type failingOpen struct{ err error }

func (s failingOpen) Open(context.Context) (io.ReadCloser, error) { return nil, s.err }

// brokenSource returns data and then a read error instead of EOF.
type brokenSource struct {
	data string
	err  error
}

func (s brokenSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(io.MultiReader(strings.NewReader(s.data), &errReader{s.err})), nil
}

type errReader struct{ err error }

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }

// recordingStore wraps another store and remembers the size of every batch
// handed to Append.
type recordingStore struct {
	inner columnar.Store

	mu      sync.Mutex
	appends []int
}

func (s *recordingStore) CreateTable(sch *schema.Schema) (columnar.Table, error) {
	t, err := s.inner.CreateTable(sch)
	if err != nil {
		return nil, err
	}
	return &recordingTable{Table: t, s: s}, nil
}

func (s *recordingStore) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.appends...)
}

type recordingTable struct {
	columnar.Table
	s *recordingStore
}

func (t *recordingTable) Append(rows []record.Record) (int, error) {
	t.s.mu.Lock()
	t.s.appends = append(t.s.appends, len(rows))
	t.s.mu.Unlock()
	return t.Table.Append(rows)
}

// memTable is an in-memory Table used where Parquet output is irrelevant.
type memTable struct {
	sch       *schema.Schema
	rows      int64
	batches   int
	onAppend  func(rows []record.Record)
	exportErr error
	exported  int
}

func (t *memTable) Schema() *schema.Schema { return t.sch }
func (t *memTable) NumRows() int64         { return t.rows }
func (t *memTable) NumBatches() int        { return t.batches }
func (t *memTable) Release()               {}

func (t *memTable) Append(rows []record.Record) (int, error) {
	if t.onAppend != nil {
		t.onAppend(rows)
	}
	t.rows += int64(len(rows))
	t.batches++
	return len(rows), nil
}

func (t *memTable) Export(ctx context.Context, _ string, _ columnar.ExportOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.exported++
	return t.exportErr
}

// memStore hands out memTables and remembers them.
type memStore struct {
	mu     sync.Mutex
	tables []*memTable
}

func (s *memStore) CreateTable(sch *schema.Schema) (columnar.Table, error) {
	t := &memTable{sch: sch}
	s.mu.Lock()
	s.tables = append(s.tables, t)
	s.mu.Unlock()
	return t, nil
}

func (s *memStore) exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tables {
		n += t.exported
	}
	return n
}

// overcountStore writes real Parquet but reports one row more than it
// appended, so post-export verification fails.
type overcountStore struct{ inner columnar.Store }

func (s overcountStore) CreateTable(sch *schema.Schema) (columnar.Table, error) {
	t, err := s.inner.CreateTable(sch)
	if err != nil {
		return nil, err
	}
	return overcountTable{t}, nil
}

type overcountTable struct{ columnar.Table }

func (t overcountTable) NumRows() int64 { return t.Table.NumRows() + 1 }

var errBoom = errors.New("boom")
