// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Conversion runs are short-lived batch jobs, so metrics are pushed to a
// Pushgateway when the run ends instead of being exposed for scraping.
package prompush

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"jsonl2parquet/internal/metrics"
)

const defaultJob = "jsonl2parquet"

// Option customizes a Backend.
type Option func(*Backend)

// WithGrouping adds a grouping label to the push URL. Runs that push under
// different groupings do not replace each other's metrics.
func WithGrouping(name, value string) Option {
	return func(b *Backend) {
		if name != "" && value != "" {
			b.grouping[name] = value
		}
	}
}

// WithHTTPClient replaces the client used for pushes.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.client = c }
}

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	grouping   map[string]string
	client     *http.Client
	reg        *prometheus.Registry

	steps   *prometheus.CounterVec // {step,status}
	stepDur *prometheus.SummaryVec // {step,status}
	records *prometheus.CounterVec // {kind}
	batches prometheus.Counter
	files   *prometheus.CounterVec // {status}
}

// NewBackend registers the converter's collectors on a private registry.
// jobName is the Pushgateway job; empty means "jsonl2parquet".
func NewBackend(jobName, gatewayURL string, opts ...Option) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = defaultJob
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		grouping:   map[string]string{},
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Conversion steps executed, by step and status.",
		}, []string{"step", "status"}),
		stepDur: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Conversion step duration in seconds, by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts by kind (lines_read, decode_failures, rows_written, ...).",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Record batches appended to output tables.",
		}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.FilesTotal,
			Help: "Input files converted, by status.",
		}, []string{"status"}),
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, c := range []prometheus.Collector{b.steps, b.stepDur, b.records, b.batches, b.files} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

// Registry exposes the backend's registry, mainly for tests and for
// callers that also want to serve the metrics.
func (b *Backend) Registry() *prometheus.Registry { return b.reg }

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.steps != nil {
			b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.records != nil {
			b.records.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batches != nil {
			b.batches.Add(delta)
		}
	case metrics.FilesTotal:
		if b.files != nil {
			b.files.WithLabelValues(labels["status"]).Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDur == nil {
		return
	}
	b.stepDur.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush replaces this job's group on the Pushgateway with the current
// registry contents.
func (b *Backend) Flush() error {
	p := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg)
	if b.client != nil {
		p = p.Client(b.client)
	}
	for k, v := range b.grouping {
		p = p.Grouping(k, v)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
