// Package metrics declares the Prometheus collectors of the service.
// They are registered on the default registry and exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "leadintake"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	leadsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_created_total",
			Help:      "Total number of leads submitted",
		},
	)

	jobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Total number of jobs handed to the queue",
		},
		[]string{"task", "status"},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Total number of job attempts by outcome",
		},
		[]string{"task", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job attempts in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task"},
	)
)

// Job attempt outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeDeferred  = "deferred"
)

func ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func RecordLeadCreated() {
	leadsCreated.Inc()
}

func RecordJobEnqueued(task string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	jobsEnqueued.WithLabelValues(task, status).Inc()
}

func RecordJobOutcome(task, outcome string, elapsed time.Duration) {
	jobsProcessed.WithLabelValues(task, outcome).Inc()
	if outcome != OutcomeDeferred {
		jobDuration.WithLabelValues(task).Observe(elapsed.Seconds())
	}
}
