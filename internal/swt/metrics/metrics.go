// Package metrics exports software-trace session metrics to Prometheus.
//
// Metrics implements recorder.Observer. None of its methods is reached from
// the per-record fast path or from Invalidate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kolkov/swtrace/internal/swt/recorder"
)

const namespace = "swt"

// Metrics holds the session counters.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsStopped   *prometheus.CounterVec
	RecordsCollected  prometheus.Counter
	BufferGrowths     prometheus.Counter
	Faults            *prometheus.CounterVec
	Invalidations     prometheus.Counter
	SessionsAbandoned prometheus.Counter
	TraceLength       prometheus.Histogram
}

// New creates the metrics and registers them with reg.
// A nil reg selects prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total software trace sessions started",
		}),
		SessionsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_stopped_total",
			Help:      "Total software trace sessions stopped, by final status",
		}, []string{"status"}),
		RecordsCollected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_collected_total",
			Help:      "Total location records handed out by stopped sessions",
		}),
		BufferGrowths: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_growths_total",
			Help:      "Total successful trace buffer growths",
		}),
		Faults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Total sessions that stopped recording because the buffer could not grow",
		}, []string{"reason"}),
		Invalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Total sessions invalidated by an asynchronous abort",
		}),
		SessionsAbandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_abandoned_total",
			Help:      "Total sessions whose goroutine exited without stopping them",
		}),
		TraceLength: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trace_length_records",
			Help:      "Number of records in stopped traces",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10), // 16 to ~4M
		}),
	}
}

// SessionStarted implements recorder.Observer.
func (m *Metrics) SessionStarted() { m.SessionsStarted.Inc() }

// BufferGrew implements recorder.Observer.
func (m *Metrics) BufferGrew() { m.BufferGrowths.Inc() }

// SessionFaulted implements recorder.Observer.
func (m *Metrics) SessionFaulted(reason recorder.Status) {
	m.Faults.WithLabelValues(reason.String()).Inc()
}

// SessionStopped implements recorder.Observer.
func (m *Metrics) SessionStopped(status recorder.Status, records int) {
	m.SessionsStopped.WithLabelValues(status.String()).Inc()
	m.RecordsCollected.Add(float64(records))
	m.TraceLength.Observe(float64(records))
}

// Invalidated counts n sessions invalidated by one abort request.
func (m *Metrics) Invalidated(n int) {
	if n > 0 {
		m.Invalidations.Add(float64(n))
	}
}

// Abandoned counts one session lost with its goroutine.
func (m *Metrics) Abandoned() { m.SessionsAbandoned.Inc() }

var _ recorder.Observer = (*Metrics)(nil)
