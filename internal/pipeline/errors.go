package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Stage names the part of the pipeline an error came from.
type Stage string

const (
	StageSource    Stage = "source"
	StageTransform Stage = "transform"
	StageSink      Stage = "sink"
	StageFlush     Stage = "flush"
)

// StageError attributes a fatal error to the stage that raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// wrapStage tags err with stage unless it already carries one.
func wrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage err is attributed to, or "" if none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ErrAgg keeps a count of row-level failures, a per-reason breakdown and the
// first few samples for the end-of-run summary. Safe for concurrent use.
type ErrAgg struct {
	mu      sync.Mutex
	limit   int
	count   int64
	first   []string
	buckets map[string]int64
}

func NewErrAgg(limit int) *ErrAgg {
	return &ErrAgg{limit: limit, buckets: make(map[string]int64)}
}

// AddLine records a failure for the given physical line.
func (a *ErrAgg) AddLine(line int64, reason string) {
	a.mu.Lock()
	a.buckets[reason]++
	if len(a.first) < a.limit {
		a.first = append(a.first, fmt.Sprintf("line %d: %s", line, reason))
	}
	a.count++
	a.mu.Unlock()
}

func (a *ErrAgg) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Samples returns the first recorded failures in arrival order.
func (a *ErrAgg) Samples() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.first...)
}

// Reasons returns a copy of the per-reason counts.
func (a *ErrAgg) Reasons() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int64, len(a.buckets))
	for k, v := range a.buckets {
		out[k] = v
	}
	return out
}

// ReasonKeys returns the reasons sorted by name, for stable logging.
func (a *ErrAgg) ReasonKeys() []string {
	r := a.Reasons()
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
