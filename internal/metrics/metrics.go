// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// DBQueryDuration measures database query latency.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// VisitsCreatedTotal counts created visits.
	VisitsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visits_created_total",
			Help: "Total number of visits created",
		},
	)

	// RateLimitedTotal counts denied rate limit checks by action.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"action"},
	)

	// RateLimitFailOpenTotal counts limiter checks that were allowed because
	// the counting store or settings source was unreachable. A non-zero rate
	// means quota enforcement is degraded.
	RateLimitFailOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_fail_open_total",
			Help: "Total number of rate limit checks that failed open",
		},
		[]string{"action", "stage"},
	)

	// CursorRejectedTotal counts rejected pagination tokens by reason.
	// The "signature" reason is the tamper-attempt signal.
	CursorRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursor_rejected_total",
			Help: "Total number of rejected pagination cursors",
		},
		[]string{"reason"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordVisitCreated records a visit creation.
func RecordVisitCreated() {
	VisitsCreatedTotal.Inc()
}

// RecordRateLimited records a denied rate limit check.
func RecordRateLimited(action string) {
	RateLimitedTotal.WithLabelValues(action).Inc()
}

// RecordRateLimitFailOpen records a fail-open limiter decision.
func RecordRateLimitFailOpen(action, stage string) {
	RateLimitFailOpenTotal.WithLabelValues(action, stage).Inc()
}

// RecordCursorRejected records a rejected pagination cursor.
func RecordCursorRejected(reason string) {
	CursorRejectedTotal.WithLabelValues(reason).Inc()
}
