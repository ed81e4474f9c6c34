package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	SweepsTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_sweeps_total", Help: "Evaluation sweeps started"})
	SweepFailures    = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_sweep_failures_total", Help: "Sweeps that ended degraded"})
	SweepDuration    = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "sla_sweep_duration_seconds", Help: "Sweep wall time", Buckets: prometheus.DefBuckets})
	SweepEvaluated   = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_issues_evaluated_total", Help: "Issues evaluated across sweeps"})
	SweepTransitions = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_transitions_total", Help: "Edge-triggered SLA state transitions"})
	JobsEnqueued     = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_jobs_enqueued_total", Help: "Escalation jobs placed on the queue"})
	JobsDelivered    = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_jobs_delivered_total", Help: "Escalation notifications delivered"})
	JobsRetried      = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_jobs_retried_total", Help: "Escalation attempts that failed and will retry"})
	JobsSuperseded   = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_jobs_superseded_total", Help: "Jobs dropped as stale by the version check"})
	JobsDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{Name: "sla_jobs_dead_lettered_total", Help: "Jobs moved to the dead-letter record"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "sla_queue_depth", Help: "Ready escalation queue depth"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "sla_jobs_inflight", Help: "Escalation jobs currently leased"})
)

// MetricsHandler exposes the /metrics HTTP handler with a singleton registry.
func MetricsHandler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			SweepsTotal,
			SweepFailures,
			SweepDuration,
			SweepEvaluated,
			SweepTransitions,
			JobsEnqueued,
			JobsDelivered,
			JobsRetried,
			JobsSuperseded,
			JobsDeadLettered,
			QueueDepthGauge,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}
