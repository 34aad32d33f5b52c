// Package schema defines the declarative column layout shared by the record
// decoder and the columnar sink.
//
// A Schema is an ordered list of columns. Column i of a schema corresponds to
// cell i of every record.Record built for it, and to field i of the Arrow
// schema used for the Parquet output. Nothing else carries positional
// knowledge, which keeps decoder and sink mechanically in sync.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the semantic type of a column.
type Kind string

const (
	// Text holds JSON strings. Any other JSON type decodes to NULL.
	Text Kind = "text"
	// Int holds JSON integers that fit in int64. Floats and overflowing
	// numbers decode to NULL.
	Int Kind = "int"
	// JSON holds any non-null JSON value serialized as compact JSON text.
	// Used for nested sub-documents the sink does not need to unpack.
	// A JSON null is stored as NULL, not as the text "null", so a present
	// null and a missing key read the same.
	JSON Kind = "json"
)

var (
	// ErrEmptySchema is returned when a schema has no columns.
	ErrEmptySchema = errors.New("schema: no columns")
	// ErrUnknownKind is returned by ParseKind for unsupported type names.
	ErrUnknownKind = errors.New("schema: unknown column type")
)

// Column is one (name, kind) pair of a schema.
type Column struct {
	Name string `json:"name" mapstructure:"name"`
	Kind Kind   `json:"type" mapstructure:"type"`
}

// Schema is an ordered, named list of columns.
type Schema struct {
	Name    string
	Columns []Column

	index map[string]int
}

// New validates columns and returns a Schema. Column names must be non-empty
// and unique.
func New(name string, cols []Column) (*Schema, error) {
	if len(cols) == 0 {
		return nil, ErrEmptySchema
	}
	idx := make(map[string]int, len(cols))
	out := make([]Column, len(cols))
	for i, c := range cols {
		n := strings.TrimSpace(c.Name)
		if n == "" {
			return nil, fmt.Errorf("schema %s: column %d has empty name", name, i)
		}
		if _, dup := idx[n]; dup {
			return nil, fmt.Errorf("schema %s: duplicate column %q", name, n)
		}
		k, err := ParseKind(string(c.Kind))
		if err != nil {
			return nil, fmt.Errorf("schema %s: column %q: %w", name, n, err)
		}
		idx[n] = i
		out[i] = Column{Name: n, Kind: k}
	}
	return &Schema{Name: name, Columns: out, index: idx}, nil
}

// MustNew is New for package-level schemas known to be valid.
func MustNew(name string, cols []Column) *Schema {
	s, err := New(name, cols)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.Columns) }

// Index returns the position of the named column, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// ParseKind maps user-facing type names onto a Kind. The accepted spellings
// follow the usual SQL aliases so schemas copied from DDL keep working.
func ParseKind(t string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text", "string", "varchar", "utf8", "":
		return Text, nil
	case "int", "integer", "bigint", "int8", "int4", "int64", "int32":
		return Int, nil
	case "json", "jsonb", "object", "array":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, t)
	}
}

// Lookup returns a built-in schema by name.
func Lookup(name string) (*Schema, bool) {
	switch strings.ToLower(name) {
	case "people", "":
		return People, true
	default:
		return nil, false
	}
}
