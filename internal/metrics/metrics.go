// Package metrics provides Prometheus instrumentation for the relay.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lizzyg/aether/internal/providers/retry"
)

var (
	// RequestsTotal counts relay responses by route and HTTP status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of relay requests by route and status.",
		},
		[]string{"route", "status"},
	)

	// RequestDuration tracks end-to-end handler latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "End-to-end relay request latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route"},
	)

	// UpstreamAttempts counts every upstream try, so retries show up as
	// attempts with outcome "retryable".
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_attempts_total",
			Help: "Total number of upstream attempts by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	// ActiveRequests tracks the number of currently in-flight requests.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_requests",
			Help: "Number of currently in-flight relay requests.",
		},
	)
)

// ObserveRequest records one finished relay request.
func ObserveRequest(route string, status int, elapsed time.Duration) {
	RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveAttempt matches the providers' attempt observer signature.
func ObserveAttempt(op string, a retry.Attempt) {
	UpstreamAttempts.WithLabelValues(op, string(a.Outcome)).Inc()
}
