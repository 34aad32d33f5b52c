// Package logging builds the zerolog logger used across the converter.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"

	FieldRunID     = "run_id"
	FieldJob       = "job"
	FieldComponent = "component"
)

// Config controls log level, encoding and destination.
type Config struct {
	Level   string `json:"level" mapstructure:"level"`
	Format  string `json:"format" mapstructure:"format"`
	Output  string `json:"output" mapstructure:"output"`
	NoColor bool   `json:"no_color" mapstructure:"no_color"`
	Caller  bool   `json:"caller" mapstructure:"caller"`
}

// ApplyDefaults fills unset fields: info level, console format on stderr.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate checks level, format and output.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil || c.Level == "" {
		return fmt.Errorf("logging.level %q is not a zerolog level", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case FormatJSON, FormatConsole, "pretty":
	default:
		return fmt.Errorf("logging.format must be json or console (got: %s)", c.Format)
	}
	switch strings.ToLower(c.Output) {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("logging.output must be stdout or stderr (got: %s)", c.Output)
	}
	return nil
}

// New returns a logger for cfg. A nil w selects the configured output.
func New(cfg Config, w io.Writer) zerolog.Logger {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if w == nil {
		w = outputWriter(cfg.Output)
	}

	switch strings.ToLower(cfg.Format) {
	case FormatConsole, "pretty":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: cfg.NoColor}
	}

	zc := zerolog.New(w).Level(level).With().Timestamp()
	if cfg.Caller {
		zc = zc.Caller()
	}
	return zc.Logger()
}

// WithRun tags l with the job name and run id.
func WithRun(l zerolog.Logger, job, runID string) zerolog.Logger {
	return l.With().Str(FieldJob, job).Str(FieldRunID, runID).Logger()
}

// WithComponent tags l with a component name.
func WithComponent(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

func outputWriter(output string) io.Writer {
	if strings.EqualFold(output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}
