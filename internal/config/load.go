package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jsonl2parquet/internal/pipeline"
	"jsonl2parquet/internal/tracing"
)

// EnvPrefix prefixes every environment override, e.g.
// JSONL2PQ_RUNTIME_CHUNK_SIZE=50000.
const EnvPrefix = "JSONL2PQ"

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// File is a JSON, YAML or TOML config file. Empty means defaults plus
	// environment only.
	File string
	// EnvFile is a dotenv file loaded before the environment is read.
	// Existing variables are not overwritten. A missing file is ignored
	// unless it was named explicitly with Required set.
	EnvFile         string
	EnvFileRequired bool
	// Flags binds command-line flags to config keys, e.g.
	// "runtime.chunk_size" → --chunk-size. A flag overrides file and
	// environment only when it was set on the command line.
	Flags map[string]*pflag.Flag
}

// defaults are registered with viper so every key is visible to
// AutomaticEnv, including keys absent from the config file.
var defaults = map[string]any{
	"job":                              "jsonl2parquet",
	"source.kind":                      "file",
	"source.file.path":                 "",
	"source.file.paths":                []string{},
	"source.file.compression":          "auto",
	"source.http.url":                  "",
	"source.http.urls":                 []string{},
	"source.http.compression":          "auto",
	"source.http.timeout":              "30s",
	"source.http.max_retries":          3,
	"source.http.insecure_skip_verify": false,
	"parser.kind":                      "ndjson",
	"storage.kind":                     "parquet",
	"storage.parquet.path":             "",
	"storage.parquet.dir":              "",
	"storage.parquet.schema":           "people",
	"storage.parquet.compression":      "zstd",
	"storage.parquet.level":            0,
	"storage.parquet.row_group_size":   0,
	"storage.parquet.verify":           false,
	"runtime.chunk_size":               pipeline.DefaultChunkSize,
	"runtime.channel_buffer":           pipeline.DefaultChannelBuffer,
	"runtime.workers":                  0,
	"runtime.read_buffer":              pipeline.DefaultReadBuffer,
	"runtime.files_parallel":           1,
	"runtime.progress_every":           pipeline.DefaultProgressEvery,
	"runtime.error_samples":            pipeline.DefaultErrorSamples,
	"logging.level":                    "info",
	"logging.format":                   "console",
	"logging.output":                   "stderr",
	"logging.no_color":                 false,
	"logging.caller":                   false,
	"metrics.backend":                  "none",
	"metrics.pushgateway_url":          "",
	"metrics.datadog_addr":             "",
	"metrics.namespace":                "",
	"metrics.tags":                     []string{},
	"profile.path":                     "",
	"profile.fields":                   []string{},
	"profile.max_distinct":             0,
	"tracing.exporter":                 "none",
	"tracing.endpoint":                 "",
	"tracing.insecure":                 false,
	"tracing.sample_rate":              0.0,
}

// Load resolves a Pipeline from defaults, an optional config file, the
// environment and bound flags, in increasing order of precedence.
//
// Keys are case-insensitive, so parser.options.header_map source keys are
// lowercased when they come from a file. Decoders that need exact key case
// should read the map from JSON directly.
func Load(opt LoadOptions) (Pipeline, error) {
	var p Pipeline

	if err := loadDotEnv(opt.EnvFile, opt.EnvFileRequired); err != nil {
		return p, err
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, f := range opt.Flags {
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return p, fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}

	if opt.File != "" {
		v.SetConfigFile(opt.File)
		if err := v.ReadInConfig(); err != nil {
			return p, fmt.Errorf("read config %s: %w", opt.File, err)
		}
	}

	if err := v.Unmarshal(&p); err != nil {
		return p, fmt.Errorf("decode config: %w", err)
	}
	p.ApplyDefaults()
	return p, nil
}

func loadDotEnv(path string, required bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// ApplyDefaults fills zero values that Load would otherwise leave empty, so
// a Pipeline built in code behaves like one loaded from a file.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = "jsonl2parquet"
	}
	if p.Source.Kind == "" {
		p.Source.Kind = "file"
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "ndjson"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = "parquet"
	}
	if p.Storage.Parquet.Schema == "" && len(p.Storage.Parquet.Columns) == 0 {
		p.Storage.Parquet.Schema = "people"
	}
	if p.Runtime.FilesParallel <= 0 {
		p.Runtime.FilesParallel = 1
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
	if p.Metrics.Namespace == "" {
		p.Metrics.Namespace = p.Job
	}
	if p.Tracing.Exporter == "" {
		p.Tracing.Exporter = tracing.ExporterNone
	}
	p.Logging.ApplyDefaults()
}

// Hostname is used as a default metrics tag.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
