// Package metrics holds the Prometheus collectors for upstream traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for UpstreamRequests.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeExhausted   = "exhausted"
	OutcomeError       = "error"
)

// Retry reason labels for UpstreamRetries.
const (
	RetryRateLimited = "rate_limited"
	RetryServerError = "server_error"
	RetryTimeout     = "timeout"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdbrowser_upstream_requests_total",
			Help: "Total number of logical Schedules Direct calls by terminal outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdbrowser_upstream_retries_total",
			Help: "Total number of Schedules Direct attempts that were retried",
		},
		[]string{"reason"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sdbrowser_upstream_request_duration_seconds",
			Help:    "Duration of logical Schedules Direct calls including retries and waits",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)
)

// RecordUpstreamCall records the terminal outcome and total duration of one
// logical upstream call.
func RecordUpstreamCall(endpoint, outcome string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retried attempt.
func RecordRetry(reason string) {
	UpstreamRetries.WithLabelValues(reason).Inc()
}
