// Package metrics adapts metrics/metrics.go and metrics/prometheus_metrics.go
// (the teacher's abstract Metrics interface over a Prometheus-backed
// implementation) down to the fixed, typed set of counters this worker
// emits, rather than the teacher's generic Register/Record-by-name surface.
// A typed interface means a caller can never record to a name that was
// never registered.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Counters is implemented by Prometheus and by a no-op stub for tests that
// don't care about metrics.
type Counters interface {
	BatchClaimed()
	RowsStaged(n int)
	RowsErrored(n int)
	ReaperReset(n int)
	ReaperFailed(n int)
	BatchRowLimitHit()
}

// Prometheus implements Counters, grounded on the teacher's
// PrometheusMetrics (one prometheus.Counter per registered name, created
// once at construction instead of lazily on first Record call).
type Prometheus struct {
	batchesClaimed prometheus.Counter
	rowsStaged     prometheus.Counter
	rowsErrored    prometheus.Counter
	reaperReset    prometheus.Counter
	reaperFailed   prometheus.Counter
	batchRowLimit  prometheus.Counter
}

// NewPrometheus registers the six worker counters with the default
// Prometheus registry. Call once at startup.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		batchesClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batches_claimed_total",
			Help: "Total batches successfully claimed by this worker process.",
		}),
		rowsStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rows_staged_total",
			Help: "Total rows inserted with status staged.",
		}),
		rowsErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rows_errored_total",
			Help: "Total rows inserted with status error.",
		}),
		reaperReset: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reaper_reset_total",
			Help: "Total batches reset from parsing back to uploaded by the reaper.",
		}),
		reaperFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reaper_failed_total",
			Help: "Total batches permanently failed by the reaper (MAX_ATTEMPTS_EXCEEDED).",
		}),
		batchRowLimit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_row_limit_total",
			Help: "Total batches terminated early by the row cap (BATCH_ROW_LIMIT).",
		}),
	}
	prometheus.MustRegister(
		p.batchesClaimed, p.rowsStaged, p.rowsErrored,
		p.reaperReset, p.reaperFailed, p.batchRowLimit,
	)
	return p
}

func (p *Prometheus) BatchClaimed()      { p.batchesClaimed.Inc() }
func (p *Prometheus) RowsStaged(n int)   { p.rowsStaged.Add(float64(n)) }
func (p *Prometheus) RowsErrored(n int)  { p.rowsErrored.Add(float64(n)) }
func (p *Prometheus) ReaperReset(n int)  { p.reaperReset.Add(float64(n)) }
func (p *Prometheus) ReaperFailed(n int) { p.reaperFailed.Add(float64(n)) }
func (p *Prometheus) BatchRowLimitHit()  { p.batchRowLimit.Inc() }

// Noop implements Counters with no side effects, for unit tests that
// exercise the pipeline/claim orchestrator without a Prometheus registry.
type Noop struct{}

func (Noop) BatchClaimed()     {}
func (Noop) RowsStaged(int)    {}
func (Noop) RowsErrored(int)   {}
func (Noop) ReaperReset(int)   {}
func (Noop) ReaperFailed(int)  {}
func (Noop) BatchRowLimitHit() {}
