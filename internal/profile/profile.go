// Package profile gathers per-column fill statistics and value
// distributions from decoded records. An Observer is attached to the sink
// and sees every record chunk; it never changes what gets written.
package profile

import (
	"fmt"
	"os"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"jsonl2parquet/internal/record"
	"jsonl2parquet/internal/schema"
)

// OtherValue collects values seen after a field reached its distinct limit.
const OtherValue = "(other)"

// DefaultMaxDistinct bounds the value map of each counted field.
const DefaultMaxDistinct = 10000

// FieldStats counts how a column was filled. NULL covers both absent keys
// and JSON null; Empty is "" for text and [] or {} for json columns.
type FieldStats struct {
	Null     int64 `json:"null"`
	Empty    int64 `json:"empty"`
	NonEmpty int64 `json:"non_empty"`
}

// Report is the serializable result of an Observer.
type Report struct {
	Schema      string                      `json:"schema"`
	Rows        int64                       `json:"rows"`
	TotalCells  int64                       `json:"total_cells"`
	NullOrEmpty int64                       `json:"null_or_empty_cells"`
	Fields      map[string]FieldStats       `json:"fields"`
	Values      map[string]map[string]int64 `json:"values,omitempty"`
}

// Observer accumulates a Report. Safe for concurrent use.
type Observer struct {
	mu          sync.Mutex
	sch         *schema.Schema
	maxDistinct int
	rows        int64
	fields      []FieldStats
	values      map[int]map[string]int64
}

// NewObserver counts fill stats for every column of s and value
// distributions for valueFields, which must be text columns of s.
func NewObserver(s *schema.Schema, valueFields []string, maxDistinct int) (*Observer, error) {
	if maxDistinct <= 0 {
		maxDistinct = DefaultMaxDistinct
	}
	o := &Observer{
		sch:         s,
		maxDistinct: maxDistinct,
		fields:      make([]FieldStats, s.Len()),
		values:      make(map[int]map[string]int64, len(valueFields)),
	}
	for _, f := range valueFields {
		i := s.Index(f)
		if i < 0 {
			return nil, fmt.Errorf("profile: field %q not in schema %s", f, s.Name)
		}
		if s.Columns[i].Kind != schema.Text {
			return nil, fmt.Errorf("profile: field %q is %s, only text columns can be counted", f, s.Columns[i].Kind)
		}
		o.values[i] = make(map[string]int64)
	}
	return o, nil
}

// Observe adds records to the running totals. Records whose width does not
// match the schema are ignored.
func (o *Observer) Observe(recs []record.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, r := range recs {
		if len(r) != len(o.fields) {
			continue
		}
		o.rows++
		for i, v := range r {
			st := &o.fields[i]
			switch {
			case v == nil:
				st.Null++
			case isEmpty(v):
				st.Empty++
			default:
				st.NonEmpty++
			}
			counts, ok := o.values[i]
			if !ok {
				continue
			}
			s, ok := v.(string)
			if !ok {
				continue
			}
			if _, seen := counts[s]; !seen && len(counts) >= o.maxDistinct {
				s = OtherValue
			}
			counts[s]++
		}
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case string:
		return x == "" || x == "[]" || x == "{}"
	default:
		return false
	}
}

// Report returns a snapshot of the totals so far.
func (o *Observer) Report() Report {
	o.mu.Lock()
	defer o.mu.Unlock()

	rep := Report{
		Schema: o.sch.Name,
		Rows:   o.rows,
		Fields: make(map[string]FieldStats, len(o.fields)),
	}
	for i, st := range o.fields {
		rep.Fields[o.sch.Columns[i].Name] = st
		rep.TotalCells += st.Null + st.Empty + st.NonEmpty
		rep.NullOrEmpty += st.Null + st.Empty
	}
	if len(o.values) > 0 {
		rep.Values = make(map[string]map[string]int64, len(o.values))
		for i, counts := range o.values {
			cp := make(map[string]int64, len(counts))
			for k, v := range counts {
				cp[k] = v
			}
			rep.Values[o.sch.Columns[i].Name] = cp
		}
	}
	return rep
}

// Merge folds several reports into one, as for a batch of input files.
func Merge(reports ...Report) Report {
	out := Report{Fields: map[string]FieldStats{}}
	for _, r := range reports {
		if out.Schema == "" {
			out.Schema = r.Schema
		}
		out.Rows += r.Rows
		out.TotalCells += r.TotalCells
		out.NullOrEmpty += r.NullOrEmpty
		for k, st := range r.Fields {
			acc := out.Fields[k]
			acc.Null += st.Null
			acc.Empty += st.Empty
			acc.NonEmpty += st.NonEmpty
			out.Fields[k] = acc
		}
		for f, counts := range r.Values {
			if out.Values == nil {
				out.Values = map[string]map[string]int64{}
			}
			dst := out.Values[f]
			if dst == nil {
				dst = map[string]int64{}
				out.Values[f] = dst
			}
			for v, n := range counts {
				dst[v] += n
			}
		}
	}
	return out
}

// FillRatio returns the share of non-empty cells, 0 for an empty report.
func (r Report) FillRatio() float64 {
	if r.TotalCells == 0 {
		return 0
	}
	return float64(r.TotalCells-r.NullOrEmpty) / float64(r.TotalCells)
}

// ValueCount is one entry of a sorted distribution.
type ValueCount struct {
	Value string
	Count int64
}

// Top returns the n most frequent values of field, ties broken by value.
func (r Report) Top(field string, n int) []ValueCount {
	counts := r.Values[field]
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// WriteJSON writes r as indented JSON to path.
func (r Report) WriteJSON(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", path, err)
	}
	return nil
}
