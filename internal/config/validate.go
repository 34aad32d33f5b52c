package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"jsonl2parquet/internal/columnar"
	"jsonl2parquet/internal/datasource/file"
	"jsonl2parquet/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.parquet.path",
// "source.http.urls[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// AsError joins the error-severity issues into one error, or returns nil.
func AsError(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// structIssues runs the declarative struct tags and reports each failure at
// its json path.
func structIssues(p Pipeline) []Issue {
	err := structValidator.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		msg := fmt.Sprintf("failed %q check", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q check (%s)", fe.Tag(), fe.Param())
		}
		if fe.Value() != nil && fe.Kind() != reflect.Struct {
			msg += fmt.Sprintf("; got %v", fe.Value())
		}
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: msg})
	}
	return issues
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	p, err := config.Load(config.LoadOptions{File: "job.yaml"})
//	if err != nil { ... }
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, structIssues(p)...)
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)

	sch, schemaIssues := validateStorage(p.Storage, len(p.Inputs()))
	issues = append(issues, schemaIssues...)
	if sch != nil {
		issues = append(issues, validateHeaderMap(p.HeaderMap(), sch)...)
		issues = append(issues, validateProfile(p.Profile, sch)...)
	}
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	if err := p.Logging.Validate(); err != nil {
		issues = append(issues, Issue{Severity: SeverityError, Path: "logging", Message: err.Error()})
	}
	if err := p.Tracing.Validate(); err != nil {
		issues = append(issues, Issue{Severity: SeverityError, Path: "tracing.endpoint", Message: err.Error()})
	}

	return dedupe(issues)
}

// dedupe drops repeated path/severity pairs; the hand-written checks and
// the struct tags overlap on a few required fields.
func dedupe(issues []Issue) []Issue {
	seen := make(map[string]bool, len(issues))
	out := issues[:0]
	for _, iss := range issues {
		k := string(iss.Severity) + "\x00" + iss.Path
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, iss)
	}
	return out
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" && len(s.File.Paths) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a path or a non-empty paths list",
			})
		}
		for i, p := range s.File.Paths {
			if strings.TrimSpace(p) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("source.file.paths[%d]", i),
					Message:  "path must not be empty",
				})
			}
		}
		if _, err := file.ParseCompression(s.File.Compression); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.compression",
				Message:  err.Error(),
			})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.URL) == "" && len(s.HTTP.URLs) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  "http source requires a url or a non-empty urls list",
			})
		}
		if _, err := file.ParseCompression(s.HTTP.Compression); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.compression",
				Message:  err.Error(),
			})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.http.insecure_skip_verify",
				Message:  "TLS certificate verification is disabled",
			})
		}
	}

	return issues
}

// validateParser validates parser configuration.
func validateParser(p Parser) []Issue {
	var issues []Issue

	raw := p.Options.Any("header_map")
	if raw == nil {
		return issues
	}
	hm := p.Options.StringMap("header_map")
	switch raw.(type) {
	case map[string]any, map[string]string:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.header_map",
			Message:  fmt.Sprintf("header_map must be an object of strings; got %T", raw),
		})
		return issues
	}
	if m, ok := raw.(map[string]any); ok && len(m) != len(hm) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.header_map",
			Message:  "header_map has non-string values; they are ignored",
		})
	}
	for k, v := range hm {
		if strings.TrimSpace(v) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.header_map." + k,
				Message:  "header_map target must not be empty",
			})
		}
	}

	return issues
}

// validateStorage validates the output settings and resolves the schema.
// inputs is the number of configured inputs; several inputs need a dir.
func validateStorage(s Storage, inputs int) (*schema.Schema, []Issue) {
	var issues []Issue
	pq := s.Parquet

	if strings.TrimSpace(pq.Path) == "" && strings.TrimSpace(pq.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.parquet.path",
			Message:  "storage.parquet needs a path or a dir",
		})
	}
	if inputs > 1 && strings.TrimSpace(pq.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.parquet.dir",
			Message:  fmt.Sprintf("%d inputs configured; a dir is required to name one output per input", inputs),
		})
	}
	if pq.Path != "" && pq.Dir != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.parquet.path",
			Message:  "both path and dir are set; path wins for a single input",
		})
	}

	codec, err := columnar.ParseCodec(pq.Compression)
	if err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.parquet.compression",
			Message:  err.Error(),
		})
	} else if codec == columnar.CodecNone && pq.Level != 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.parquet.level",
			Message:  "level is ignored without compression",
		})
	}

	var sch *schema.Schema
	if len(pq.Columns) > 0 {
		sch, err = schema.New(pq.Schema, pq.Columns)
		if err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.parquet.columns",
				Message:  err.Error(),
			})
		}
		if pq.Schema != "" {
			if _, ok := schema.Lookup(pq.Schema); ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     "storage.parquet.schema",
					Message:  fmt.Sprintf("columns override the built-in schema %q", pq.Schema),
				})
			}
		}
	} else {
		var ok bool
		sch, ok = schema.Lookup(pq.Schema)
		if !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.parquet.schema",
				Message:  fmt.Sprintf("unknown schema %q and no columns declared", pq.Schema),
			})
		}
	}

	return sch, issues
}

// validateHeaderMap warns about renames that target no schema column.
func validateHeaderMap(hm map[string]string, sch *schema.Schema) []Issue {
	var issues []Issue
	for k, v := range hm {
		if v != "" && sch.Index(v) < 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "parser.options.header_map." + k,
				Message:  fmt.Sprintf("target %q is not a column of schema %q; values are dropped", v, sch.Name),
			})
		}
	}
	return issues
}

func validateProfile(p Profile, sch *schema.Schema) []Issue {
	var issues []Issue
	if p.Path == "" && len(p.Fields) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "profile.fields",
			Message:  "profile.fields is set but profile.path is empty; no report is written",
		})
	}
	for i, f := range p.Fields {
		idx := sch.Index(f)
		switch {
		case idx < 0:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("profile.fields[%d]", i),
				Message:  fmt.Sprintf("unknown column %q", f),
			})
		case sch.Columns[idx].Kind != schema.Text:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("profile.fields[%d]", i),
				Message:  fmt.Sprintf("column %q is %s; value counts need a text column", f, sch.Columns[idx].Kind),
			})
		}
	}
	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations.
// Negative values are reported by the struct tags.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.ChunkSize > 1_000_000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.chunk_size",
			Message:  fmt.Sprintf("chunk_size=%d; very large chunks hold many lines in memory per channel slot", r.ChunkSize),
		})
	}
	if r.ChannelBuffer > 64 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.channel_buffer",
			Message:  fmt.Sprintf("channel_buffer=%d; memory grows with buffer × chunk_size", r.ChannelBuffer),
		})
	}
	if r.ReadBuffer > 0 && r.ReadBuffer < 4096 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.read_buffer",
			Message:  fmt.Sprintf("read_buffer=%d; small buffers slow down line reading", r.ReadBuffer),
		})
	}

	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			})
		}
	}
	for i, tag := range m.Tags {
		if !strings.Contains(tag, ":") {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("metrics.tags[%d]", i),
				Message:  fmt.Sprintf("tag %q is not key:value; it is sent as a bare tag", tag),
			})
		}
	}
	return issues
}
