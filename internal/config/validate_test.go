package config

import (
	"strings"
	"testing"

	"jsonl2parquet/internal/schema"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validPipeline() Pipeline {
	p := Pipeline{
		Job:     "test-job",
		Source:  Source{Kind: "file", File: SourceFile{Path: "input.jsonl"}},
		Storage: Storage{Parquet: StorageParquet{Path: "out.parquet"}},
	}
	p.ApplyDefaults()
	return p
}

/*
TestValidatePipeline_ValidMinimal verifies that a well-formed pipeline produces
no issues (errors or warnings).
*/
func TestValidatePipeline_ValidMinimal(t *testing.T) {
	issues := ValidatePipeline(validPipeline())
	if len(issues) != 0 {
		t.Fatalf("expected no issues; got %+v", issues)
	}
	if AsError(issues) != nil {
		t.Fatal("AsError should be nil without errors")
	}
}

/*
TestValidatePipeline_MissingJob verifies that an empty Job field produces a
single SeverityError with path "job", even though the struct tag also fires.
*/
func TestValidatePipeline_MissingJob(t *testing.T) {
	p := validPipeline()
	p.Job = ""

	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
	n := 0
	for _, iss := range issues {
		if iss.Path == "job" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("job reported %d times; want 1", n)
	}
}

func TestValidatePipeline_StructTags(t *testing.T) {
	p := validPipeline()
	p.Source.Kind = "ftp"
	p.Runtime.ChunkSize = -1
	p.Metrics.Backend = "statsd"

	issues := ValidatePipeline(p)
	for _, path := range []string{"source.kind", "runtime.chunk_size", "metrics.backend"} {
		if !hasIssue(t, issues, SeverityError, path, "check") {
			t.Errorf("missing struct-tag issue at %s; got %+v", path, issues)
		}
	}
	if !HasErrors(issues) {
		t.Fatal("HasErrors = false")
	}
	if err := AsError(issues); err == nil || !strings.Contains(err.Error(), "runtime.chunk_size") {
		t.Fatalf("AsError = %v", err)
	}
}

func TestValidatePipeline_Source(t *testing.T) {
	p := validPipeline()
	p.Source.File = SourceFile{Compression: "brotli"}
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "source.file.path", "requires a path") {
		t.Errorf("missing path issue; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "source.file.compression", "unknown input compression") {
		t.Errorf("missing compression issue; got %+v", issues)
	}

	p = validPipeline()
	p.Source = Source{Kind: "http", HTTP: SourceHTTP{URLs: []string{"not a url"}, InsecureSkipVerify: true}}
	p.Storage.Parquet.Dir = "out"
	issues = ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "source.http.urls[0]", "url") {
		t.Errorf("missing url issue; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "source.http.insecure_skip_verify", "disabled") {
		t.Errorf("missing TLS warning; got %+v", issues)
	}
}

func TestValidatePipeline_Storage(t *testing.T) {
	p := validPipeline()
	p.Source.File.Paths = []string{"b.jsonl"}
	p.Storage.Parquet.Compression = "lzo"
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "storage.parquet.dir", "2 inputs") {
		t.Errorf("missing dir issue; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "storage.parquet.compression", "unknown parquet compression") {
		t.Errorf("missing codec issue; got %+v", issues)
	}

	p = validPipeline()
	p.Storage.Parquet = StorageParquet{Dir: "out", Compression: "none", Level: 3, Schema: "people",
		Columns: []schema.Column{{Name: "a", Kind: "text"}, {Name: "a", Kind: "text"}}}
	issues = ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityWarning, "storage.parquet.level", "ignored") {
		t.Errorf("missing level warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "storage.parquet.columns", "duplicate") {
		t.Errorf("missing duplicate column issue; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "storage.parquet.schema", "override") {
		t.Errorf("missing override warning; got %+v", issues)
	}

	p = validPipeline()
	p.Storage.Parquet.Schema = "unknown"
	if !hasIssue(t, ValidatePipeline(p), SeverityError, "storage.parquet.schema", "unknown schema") {
		t.Error("missing unknown schema issue")
	}
}

func TestValidatePipeline_HeaderMapAndProfile(t *testing.T) {
	p := validPipeline()
	p.Storage.Parquet.Columns = []schema.Column{{Name: "id", Kind: "int"}, {Name: "name", Kind: "text"}}
	p.Parser.Options = Options{"header_map": map[string]any{"fullName": "name", "x": "nowhere", "n": 1.0}}
	p.Profile = Profile{Path: "p.json", Fields: []string{"name", "id", "ghost"}}

	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityWarning, "parser.options.header_map.x", "not a column") {
		t.Errorf("missing header_map target warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "parser.options.header_map", "non-string") {
		t.Errorf("missing non-string warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "profile.fields[1]", "text column") {
		t.Errorf("missing non-text profile issue; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "profile.fields[2]", "unknown column") {
		t.Errorf("missing unknown profile issue; got %+v", issues)
	}
	if hasIssue(t, issues, SeverityError, "profile.fields[0]", "") {
		t.Errorf("text column rejected; got %+v", issues)
	}

	p.Parser.Options = Options{"header_map": []any{"a"}}
	if !hasIssue(t, ValidatePipeline(p), SeverityError, "parser.options.header_map", "object of strings") {
		t.Error("missing header_map type issue")
	}
}

func TestValidatePipeline_RuntimeMetricsLogging(t *testing.T) {
	p := validPipeline()
	p.Runtime.ChunkSize = 2_000_000
	p.Runtime.ReadBuffer = 512
	p.Metrics = Metrics{Backend: "datadog", Tags: []string{"env:prod", "bare"}}
	p.Logging.Format = "xml"

	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityWarning, "runtime.chunk_size", "very large") {
		t.Errorf("missing chunk warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "runtime.read_buffer", "small buffers") {
		t.Errorf("missing read buffer warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "metrics.datadog_addr", "requires") {
		t.Errorf("missing datadog addr issue; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "metrics.tags[1]", "bare tag") {
		t.Errorf("missing tag warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "logging", "logging.format") {
		t.Errorf("missing logging issue; got %+v", issues)
	}

	p = validPipeline()
	p.Metrics.Backend = "pushgateway"
	if !hasIssue(t, ValidatePipeline(p), SeverityError, "metrics.pushgateway_url", "requires") {
		t.Error("missing pushgateway url issue")
	}
}

func TestValidatePipeline_Tracing(t *testing.T) {
	p := validPipeline()
	p.Tracing.Exporter = "otlp"
	if !hasIssue(t, ValidatePipeline(p), SeverityError, "tracing.endpoint", "requires tracing.endpoint") {
		t.Error("missing tracing endpoint issue")
	}

	p.Tracing.Endpoint = "localhost:4318"
	p.Tracing.SampleRate = 0.1
	if issues := ValidatePipeline(p); HasErrors(issues) {
		t.Fatalf("unexpected issues: %v", issues)
	}

	p.Tracing.Exporter = "jaeger"
	p.Tracing.SampleRate = 1.5
	issues := ValidatePipeline(p)
	for _, path := range []string{"tracing.exporter", "tracing.sample_rate"} {
		if !hasIssue(t, issues, SeverityError, path, "check") {
			t.Errorf("missing struct-tag issue at %s; got %+v", path, issues)
		}
	}
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityWarning, Path: "a.b", Message: "m"}
	if got := iss.Error(); got != "warning at a.b: m" {
		t.Fatalf("Error() = %q", got)
	}
}
