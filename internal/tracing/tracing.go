// Package tracing installs the OpenTelemetry tracer provider used by the
// pipeline spans.
//
// With the exporter unset or "none" the provider is a no-op and spans cost
// nothing. "otlp" ships spans over OTLP/HTTP to Endpoint (host:port).
package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterNone = "none"
	ExporterOTLP = "otlp"
)

// Config selects the span exporter.
type Config struct {
	Exporter string `json:"exporter" mapstructure:"exporter" validate:"omitempty,oneof=none otlp"`
	// Endpoint is the OTLP/HTTP collector, e.g. "localhost:4318".
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure" mapstructure:"insecure"`
	// SampleRate is the fraction of runs traced; 0 means every run.
	SampleRate float64 `json:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Enabled reports whether spans are exported anywhere.
func (c Config) Enabled() bool {
	return strings.ToLower(c.Exporter) == ExporterOTLP
}

// Validate checks the fields the struct tags cannot express.
func (c Config) Validate() error {
	if c.Enabled() && c.Endpoint == "" {
		return fmt.Errorf("tracing.exporter %s requires tracing.endpoint", c.Exporter)
	}
	return nil
}

// Provider is a tracer provider plus its shutdown hook.
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans. It is safe on a no-op provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// New builds the provider described by cfg. Extra options are appended to
// the SDK provider, which lets tests attach an in-memory span recorder.
func New(ctx context.Context, cfg Config, service string, extra ...sdktrace.TracerProviderOption) (*Provider, error) {
	if !cfg.Enabled() && len(extra) == 0 {
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", service),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}
	if cfg.Enabled() {
		eopts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			eopts = append(eopts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, eopts...)
		if err != nil {
			return nil, fmt.Errorf("tracing: otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	opts = append(opts, extra...)

	tp := sdktrace.NewTracerProvider(opts...)
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}

// Install makes p the global provider and sets the W3C propagators.
func Install(p *Provider) {
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 || rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}
