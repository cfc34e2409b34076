package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records scheduled job runs.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

// NewCronJobMetrics registers the cron collectors. A nil registerer yields a
// no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run.",
	}, []string{"job"})
	m := &CronJobMetrics{
		runs:        counterVec("cron", "job_runs_total", "Cron job runs by outcome.", "job", "outcome"),
		duration:    histogramVec("cron", "job_duration_seconds", "Cron job run time.", nil, "job"),
		lastSuccess: lastSuccess,
		skipped:     counter("cron", "tick_skipped_total", "Ticks skipped because another worker held the lease."),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.skipped)
	return m
}

// ObserveRun records one finished run of job.
func (c *CronJobMetrics) ObserveRun(job string, finished time.Time, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, outcome(err)).Inc()
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err == nil {
		c.lastSuccess.WithLabelValues(job).Set(float64(finished.Unix()))
	}
}

// IncSkipped counts a tick where the lease was held elsewhere.
func (c *CronJobMetrics) IncSkipped() {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.Inc()
}
