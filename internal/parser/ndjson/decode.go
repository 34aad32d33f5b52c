// Package ndjson decodes newline-delimited JSON objects into schema-aligned
// records.
//
// Decoding is a single pass over the object with buger/jsonparser: every key
// is looked up in a precompiled name → column index map and its raw value is
// handed to the column's extractor. No intermediate map[string]any is built.
//
// Accepted input is deliberately permissive: any well-formed JSON object is a
// record, keys unknown to the schema are ignored, and values that cannot be
// represented in their column's kind become NULL. Filtering belongs to later
// stages.
package ndjson

import (
	"bytes"
	"errors"

	"github.com/buger/jsonparser"
	json "github.com/goccy/go-json"

	"jsonl2parquet/internal/record"
	"jsonl2parquet/internal/schema"
)

var (
	// ErrInvalidJSON is returned for lines that are not well-formed JSON.
	ErrInvalidJSON = errors.New("invalid_json")
	// ErrNotObject is returned for well-formed JSON whose top-level value is
	// not an object (arrays, strings, numbers, null, ...).
	ErrNotObject = errors.New("not_object")
)

// Options tunes a Decoder.
type Options struct {
	// HeaderMap renames source keys before the column lookup
	// (original key → column name). Keys not in the map are used as-is.
	HeaderMap map[string]string
}

// Decoder maps JSON objects onto a schema. It is immutable after
// construction and safe for concurrent use.
type Decoder struct {
	sch     *schema.Schema
	index   map[string]int
	extract []extractor
}

// NewDecoder compiles the per-column plan for s.
func NewDecoder(s *schema.Schema, opt Options) *Decoder {
	idx := make(map[string]int, s.Len()+len(opt.HeaderMap))
	for i, c := range s.Columns {
		idx[c.Name] = i
	}
	for from, to := range opt.HeaderMap {
		if i := s.Index(to); i >= 0 {
			idx[from] = i
		}
	}
	ex := make([]extractor, s.Len())
	for i, c := range s.Columns {
		ex[i] = extractorFor(c.Kind)
	}
	return &Decoder{sch: s, index: idx, extract: ex}
}

// Schema returns the schema records are aligned to.
func (d *Decoder) Schema() *schema.Schema { return d.sch }

// Decode parses line and returns a record, or ErrInvalidJSON / ErrNotObject.
// When a key occurs more than once the last occurrence wins.
func (d *Decoder) Decode(line []byte) (record.Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !json.Valid(line) {
		return nil, ErrInvalidJSON
	}
	if line[0] != '{' {
		return nil, ErrNotObject
	}

	rec := make(record.Record, len(d.extract))
	err := jsonparser.ObjectEach(line, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		// Keys arrive unescaped.
		i, ok := d.index[string(key)]
		if !ok {
			return nil
		}
		rec[i] = d.extract[i](value, dt)
		return nil
	})
	if err != nil {
		// json.Valid already accepted the line; a walk failure here means the
		// two parsers disagree, which we treat like malformed input.
		return nil, ErrInvalidJSON
	}
	return rec, nil
}
