// Package config defines the configuration model of a conversion job and
// loads it from a file, the environment and command-line flags.
//
// Example (trimmed):
//
//	{
//	  "job":     "people",
//	  "source":  { "kind": "file", "file": { "path": "part-00001.gz" } },
//	  "parser":  { "kind": "ndjson", "options": { "header_map": { "fullName": "full_name" } } },
//	  "storage": { "kind": "parquet", "parquet": { "path": "people.parquet", "schema": "people" } },
//	  "runtime": { "chunk_size": 20000, "channel_buffer": 4 }
//	}
package config

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"jsonl2parquet/internal/logging"
	"jsonl2parquet/internal/schema"
	"jsonl2parquet/internal/tracing"
)

// Pipeline is the top-level configuration object.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" mapstructure:"job" validate:"required"`

	Source  Source         `json:"source" mapstructure:"source"`
	Parser  Parser         `json:"parser" mapstructure:"parser"`
	Storage Storage        `json:"storage" mapstructure:"storage"`
	Runtime RuntimeConfig  `json:"runtime" mapstructure:"runtime"`
	Logging logging.Config `json:"logging" mapstructure:"logging"`
	Metrics Metrics        `json:"metrics" mapstructure:"metrics"`
	Profile Profile        `json:"profile" mapstructure:"profile"`
	Tracing tracing.Config `json:"tracing" mapstructure:"tracing"`
}

// RuntimeConfig controls chunking, buffering and concurrency. Zero values
// select the defaults.
type RuntimeConfig struct {
	// ChunkSize is the number of lines per chunk.
	ChunkSize int `json:"chunk_size" mapstructure:"chunk_size" validate:"gte=0"`
	// ChannelBuffer is the capacity, in chunks, of each inter-stage channel.
	ChannelBuffer int `json:"channel_buffer" mapstructure:"channel_buffer" validate:"gte=0"`
	// Workers bounds parallel line decoding inside a chunk; 0 means NumCPU.
	Workers int `json:"workers" mapstructure:"workers" validate:"gte=0"`
	// ReadBuffer is the size of the line reader buffer in bytes.
	ReadBuffer int `json:"read_buffer" mapstructure:"read_buffer" validate:"gte=0"`
	// FilesParallel bounds how many inputs of a batch convert at once.
	FilesParallel int `json:"files_parallel" mapstructure:"files_parallel" validate:"gte=0"`
	// ProgressEvery logs progress each time this many more rows are written.
	ProgressEvery int64 `json:"progress_every" mapstructure:"progress_every" validate:"gte=0"`
	// ErrorSamples is how many decode failures are kept for the summary.
	ErrorSamples int `json:"error_samples" mapstructure:"error_samples" validate:"gte=0"`
}

// Source identifies where input comes from.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind" mapstructure:"kind" validate:"required,oneof=file http"`

	File SourceFile `json:"file" mapstructure:"file"`
	HTTP SourceHTTP `json:"http" mapstructure:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is a single input file.
	Path string `json:"path" mapstructure:"path"`
	// Paths lists several inputs; entries may be globs or @list files.
	Paths []string `json:"paths" mapstructure:"paths"`
	// Compression forces a codec (auto, none, gzip, zstd, xz).
	Compression string `json:"compression" mapstructure:"compression"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL                string            `json:"url" mapstructure:"url" validate:"omitempty,url"`
	URLs               []string          `json:"urls" mapstructure:"urls" validate:"omitempty,dive,url"`
	Compression        string            `json:"compression" mapstructure:"compression"`
	Timeout            time.Duration     `json:"timeout" mapstructure:"timeout" validate:"gte=0"`
	MaxRetries         int               `json:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	Headers            map[string]string `json:"headers" mapstructure:"headers"`
}

// Parser selects how lines are turned into records.
type Parser struct {
	// Kind selects the parser implementation. Current value: "ndjson".
	Kind string `json:"kind" mapstructure:"kind" validate:"required,oneof=ndjson jsonl"`

	// Options is a free-form map interpreted by the parser. For ndjson:
	//   header_map (object): source key → column name
	Options Options `json:"options" mapstructure:"options"`
}

// Storage selects the output format.
type Storage struct {
	// Kind selects the storage implementation. Current value: "parquet".
	Kind string `json:"kind" mapstructure:"kind" validate:"required,oneof=parquet"`

	Parquet StorageParquet `json:"parquet" mapstructure:"parquet"`
}

// StorageParquet configures the columnar output.
type StorageParquet struct {
	// Path is the output file for a single input.
	Path string `json:"path" mapstructure:"path"`
	// Dir receives <base>.parquet per input in batch mode.
	Dir string `json:"dir" mapstructure:"dir"`
	// Schema names a built-in schema; ignored when Columns is set.
	Schema string `json:"schema" mapstructure:"schema"`
	// Columns declares a custom schema.
	Columns []schema.Column `json:"columns" mapstructure:"columns"`
	// Compression is the Parquet codec: zstd, snappy, gzip, brotli, lz4, none.
	Compression  string `json:"compression" mapstructure:"compression"`
	Level        int    `json:"level" mapstructure:"level"`
	RowGroupSize int64  `json:"row_group_size" mapstructure:"row_group_size" validate:"gte=0"`
	// Verify re-reads the output after the flush and checks its row count.
	Verify bool `json:"verify" mapstructure:"verify"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is none, pushgateway or datadog.
	Backend        string   `json:"backend" mapstructure:"backend" validate:"omitempty,oneof=none pushgateway datadog"`
	PushgatewayURL string   `json:"pushgateway_url" mapstructure:"pushgateway_url" validate:"omitempty,url"`
	DatadogAddr    string   `json:"datadog_addr" mapstructure:"datadog_addr"`
	Namespace      string   `json:"namespace" mapstructure:"namespace"`
	Tags           []string `json:"tags" mapstructure:"tags"`
}

// Profile enables the field profile report.
type Profile struct {
	// Path is the JSON report file; empty disables profiling. In batch mode
	// the report covers all inputs.
	Path string `json:"path" mapstructure:"path"`
	// Fields lists text columns whose value distribution is counted.
	Fields      []string `json:"fields" mapstructure:"fields"`
	MaxDistinct int      `json:"max_distinct" mapstructure:"max_distinct" validate:"gte=0"`
}

// Inputs returns the configured inputs (paths or URLs) in order. File
// entries are returned unexpanded.
func (p Pipeline) Inputs() []string {
	var out []string
	switch p.Source.Kind {
	case "http":
		if p.Source.HTTP.URL != "" {
			out = append(out, p.Source.HTTP.URL)
		}
		out = append(out, p.Source.HTTP.URLs...)
	default:
		if p.Source.File.Path != "" {
			out = append(out, p.Source.File.Path)
		}
		out = append(out, p.Source.File.Paths...)
	}
	return out
}

// ResolveSchema returns the custom column schema if one is declared, else
// the named built-in schema.
func (p Pipeline) ResolveSchema() (*schema.Schema, error) {
	st := p.Storage.Parquet
	if len(st.Columns) > 0 {
		name := st.Schema
		if name == "" {
			name = "custom"
		}
		return schema.New(name, st.Columns)
	}
	s, ok := schema.Lookup(st.Schema)
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", st.Schema)
	}
	return s, nil
}

// HeaderMap returns parser.options.header_map.
func (p Pipeline) HeaderMap() map[string]string {
	return p.Parser.Options.StringMap("header_map")
}

// Options is a small helper to fetch typed values from free-form maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so float64 is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty
// map when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null "options" object to a non-nil,
// empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || strings.TrimSpace(string(b)) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
