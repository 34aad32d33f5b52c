package columnar

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"jsonl2parquet/internal/record"
	"jsonl2parquet/internal/schema"
)

var errTableClosed = errors.New("columnar: table already exported or released")

// ArrowStore creates Arrow-backed tables.
type ArrowStore struct {
	// Mem is the allocator for all table buffers; nil means the Go
	// allocator.
	Mem memory.Allocator
}

// NewArrowStore returns a store using the Go allocator.
func NewArrowStore() *ArrowStore { return &ArrowStore{Mem: memory.NewGoAllocator()} }

// CreateTable opens an empty table with one Arrow column per schema column.
func (s *ArrowStore) CreateTable(sch *schema.Schema) (Table, error) {
	if sch == nil || sch.Len() == 0 {
		return nil, schema.ErrEmptySchema
	}
	mem := s.Mem
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	as, err := ArrowSchema(sch)
	if err != nil {
		return nil, err
	}
	return &arrowTable{sch: sch, as: as, mem: mem}, nil
}

// ArrowSchema maps a column schema onto a nullable Arrow schema. JSON columns
// are stored as UTF-8 strings.
func ArrowSchema(sch *schema.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, sch.Len())
	for i, c := range sch.Columns {
		var dt arrow.DataType
		switch c.Kind {
		case schema.Text, schema.JSON:
			dt = arrow.BinaryTypes.String
		case schema.Int:
			dt = arrow.PrimitiveTypes.Int64
		default:
			return nil, fmt.Errorf("column %s: %w: %q", c.Name, schema.ErrUnknownKind, c.Kind)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	md := arrow.NewMetadata([]string{"jsonl2parquet.schema"}, []string{sch.Name})
	return arrow.NewSchema(fields, &md), nil
}

type arrowTable struct {
	sch     *schema.Schema
	as      *arrow.Schema
	mem     memory.Allocator
	batches []arrow.Record
	rows    int64
	closed  bool
}

func (t *arrowTable) Schema() *schema.Schema { return t.sch }
func (t *arrowTable) NumRows() int64         { return t.rows }
func (t *arrowTable) NumBatches() int        { return len(t.batches) }

func (t *arrowTable) Append(rows []record.Record) (int, error) {
	if t.closed {
		return 0, errTableClosed
	}

	b := array.NewRecordBuilder(t.mem, t.as)
	defer b.Release()
	b.Reserve(len(rows))

	appended := 0
	for _, r := range rows {
		if record.Check(r, t.sch) != nil {
			continue
		}
		for i, v := range r {
			fb := b.Field(i)
			if v == nil {
				fb.AppendNull()
				continue
			}
			switch x := v.(type) {
			case string:
				fb.(*array.StringBuilder).Append(x)
			case int64:
				fb.(*array.Int64Builder).Append(x)
			}
		}
		appended++
	}
	if appended == 0 {
		return 0, nil
	}

	rec := b.NewRecord()
	t.batches = append(t.batches, rec)
	t.rows += rec.NumRows()
	return appended, nil
}

func (t *arrowTable) Release() {
	for _, r := range t.batches {
		r.Release()
	}
	t.batches = nil
	t.closed = true
}
