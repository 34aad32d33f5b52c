package pipeline

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators ("1,234,567").
func FormatCount(n int64) string { return printer.Sprintf("%d", n) }

// FormatRate renders a rows/sec figure with thousands separators.
func FormatRate(r float64) string { return printer.Sprintf("%.0f", r) }

// Rate returns rows per second over elapsed; 0 when elapsed is not positive.
func Rate(rows int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(rows) / elapsed.Seconds()
}

// Progress logs a line each time the written row count crosses a multiple
// of Every. It is driven by the sink goroutine only.
type Progress struct {
	log   zerolog.Logger
	every int64
	next  int64
	start time.Time
	now   func() time.Time
}

// NewProgress returns a reporter; every <= 0 disables it.
func NewProgress(log zerolog.Logger, every int64) *Progress {
	return &Progress{log: log, every: every, next: every, start: time.Now(), now: time.Now}
}

// Update reports rows if a threshold was crossed and returns whether it did.
func (p *Progress) Update(rows int64) bool {
	if p == nil || p.every <= 0 || rows < p.next {
		return false
	}
	p.next = (rows/p.every + 1) * p.every

	elapsed := p.now().Sub(p.start)
	p.log.Info().
		Int64("rows", rows).
		Dur("elapsed", elapsed).
		Msgf("progress: %s rows written, %s rows/sec", FormatCount(rows), FormatRate(Rate(rows, elapsed)))
	return true
}
