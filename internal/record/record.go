// Package record holds the row representation passed between pipeline
// stages.
package record

import (
	"fmt"

	"jsonl2parquet/internal/schema"
)

// Record is one decoded row aligned to a schema: cell i belongs to column i.
// A cell is nil (NULL), a string (text and json columns) or an int64 (int
// columns).
type Record []any

// Check reports whether r can be appended to a table of schema s: the width
// must match and every non-nil cell must have the Go type of its column.
func Check(r Record, s *schema.Schema) error {
	if len(r) != s.Len() {
		return fmt.Errorf("record width %d, schema %s has %d columns", len(r), s.Name, s.Len())
	}
	for i, v := range r {
		if v == nil {
			continue
		}
		col := s.Columns[i]
		switch col.Kind {
		case schema.Text, schema.JSON:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("column %s (%s): got %T", col.Name, col.Kind, v)
			}
		case schema.Int:
			if _, ok := v.(int64); !ok {
				return fmt.Errorf("column %s (%s): got %T", col.Name, col.Kind, v)
			}
		}
	}
	return nil
}
