// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Placement strategies recorded by BooksPlacedTotal.
const (
	StrategyFirstFit = "first_fit"
	StrategyOverflow = "overflow"
)

// Library metrics
var (
	// BooksPlacedTotal counts books placed by the distributor.
	BooksPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_books_placed_total",
			Help: "Books placed on shelves by the distributor, by strategy",
		},
		[]string{"strategy"},
	)

	// CapacityRejectionsTotal counts operations refused because a shelf was full.
	CapacityRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_capacity_rejections_total",
			Help: "Operations rejected by the shelf capacity policy, by operation",
		},
		[]string{"operation"},
	)

	// ShelvesInitializedTotal counts shelves created by the initializer.
	ShelvesInitializedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_shelves_initialized_total",
			Help: "Shelves created by shelf initialization",
		},
	)

	// LibraryOperationsTotal counts library service calls by operation and status.
	LibraryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_library_operations_total",
			Help: "Library operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// LibraryOperationDuration tracks library service latency in seconds.
	LibraryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_library_operation_duration_seconds",
			Help:    "Library operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Auth and transport metrics
var (
	// AuthAttemptsTotal counts logins and registrations by result.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_auth_attempts_total",
			Help: "Authentication attempts by action and result",
		},
		[]string{"action", "result"},
	)

	// RateLimitedTotal counts requests refused by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_http_requests_total",
			Help: "HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	// SSEClientsConnected tracks open event streams.
	SSEClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_sse_clients_connected",
			Help: "Currently connected server-sent event clients",
		},
	)
)

// ObserveOperation records one library operation that started at start.
func ObserveOperation(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LibraryOperationsTotal.WithLabelValues(op, status).Inc()
	LibraryOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
