package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/schrodingerkitkat/csv-processor/internal/audit"
	"github.com/schrodingerkitkat/csv-processor/internal/schema"
)

const duplicatesKey = schema.Duplicates

// counters are shared by all workers of one run.
type counters struct {
	accepted   atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
	parsed     atomic.Int64
	skipped    atomic.Int64
	written    atomic.Int64
	duplicates atomic.Int64
	unstarted  atomic.Int64
}

// errAgg keeps the first few failure messages and a count per message.
type errAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	a.buckets[msg]++
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

// logSummary emits the end-of-run summary line and, when files failed, a
// capped sample of their errors.
func logSummary(log *slog.Logger, b audit.BatchRecord, c *counters, agg *errAgg) {
	log.Info("summary:",
		"files", len(b.Files)+len(b.Failures),
		"accepted", c.accepted.Load(),
		"rejected", c.rejected.Load(),
		"failed", c.failed.Load(),
		"not_started", c.unstarted.Load(),
		"rows_parsed", c.parsed.Load(),
		"rows_skipped", c.skipped.Load(),
		"rows_written", c.written.Load(),
		"duplicates", c.duplicates.Load(),
		"elapsed", b.FinishedAt.Sub(b.StartedAt),
	)
	agg.mu.Lock()
	defer agg.mu.Unlock()
	if agg.count > 0 {
		log.Warn("summary: file failures", "count", agg.count, "distinct", len(agg.buckets), "first", agg.first)
	}
}
