package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the publisher loop.
type OutboxMetrics struct {
	settled *prometheus.CounterVec
	batch   *prometheus.HistogramVec
}

var batchBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15}

// Settlement labels for OutboxMetrics.Settle.
const (
	SettlePublished = "published"
	SettleRetry     = "retry"
	SettleParked    = "parked"
)

// NewOutboxMetrics registers the outbox collectors. A nil registerer yields a
// no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		settled: counterVec("outbox", "events_total", "Outbox rows settled per publish attempt.", "event_type", "result"),
		batch:   histogramVec("outbox", "batch_duration_seconds", "Time to publish and settle one batch.", batchBuckets, "size"),
	}
	reg.MustRegister(m.settled, m.batch)
	return m
}

// Settle counts one row leaving a publish attempt as published, retry or parked.
func (m *OutboxMetrics) Settle(eventType, result string) {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// ObserveBatch records how long a non-empty batch took.
func (m *OutboxMetrics) ObserveBatch(size int, took time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.WithLabelValues(sizeBucket(size)).Observe(took.Seconds())
}

func sizeBucket(n int) string {
	switch {
	case n <= 1:
		return "1"
	case n <= 10:
		return "2-10"
	default:
		return "11+"
	}
}
