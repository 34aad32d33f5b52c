// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from conversion runs.
//
// The package exposes a narrow interface (Backend) for counters and
// duration observations, and a global, pluggable backend that defaults to a
// no-op so instrumentation is always safe to call. Concrete systems live in
// subpackages (prompush, datadog) and are installed with SetBackend.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	StepTotal    = "jsonl2parquet_step_total"
	StepDuration = "jsonl2parquet_step_duration_seconds"
	RecordsTotal = "jsonl2parquet_records_total"
	BatchesTotal = "jsonl2parquet_batches_total"
	FilesTotal   = "jsonl2parquet_files_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep measures latency and success/failure of one step of a run
// (e.g. "run", "export", "batch").
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds mirror the run summary: lines_read, blank_lines, records_parsed,
// decode_failures, rows_written, rows_rejected.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the appended record batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordFile counts one converted input file of a batch run.
func RecordFile(job string, err error) {
	backend.IncCounter(FilesTotal, 1, Labels{
		"job":    job,
		"status": status(err),
	})
}
