package kvfs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks per-operation Prometheus metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	// OperationsTotal counts calls by operation and result errno name
	OperationsTotal *prometheus.CounterVec

	// OperationDuration tracks call latency, lock waits included
	OperationDuration *prometheus.HistogramVec

	// LockWait tracks time spent acquiring path and directory locks
	LockWait prometheus.Histogram
}

// NewMetrics creates kvfs metrics and registers them on reg.
// Panics if registration fails (expected during initialization only).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvfs_operations_total",
				Help: "Total filesystem operations by operation and result",
			},
			[]string{"op", "result"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kvfs_operation_duration_seconds",
				Help:    "Filesystem operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		LockWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kvfs_lock_wait_seconds",
				Help:    "Time spent acquiring path and directory locks",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.LockWait,
	)

	return m
}

func (m *Metrics) observe(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, result).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}
