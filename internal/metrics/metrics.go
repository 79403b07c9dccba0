// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Coordinator refresh cycles and reconciliation
// - Per-category record fetches
// - Upstream API gateway requests and circuit breaker
// - HTTP API latency and throughput
// - WebSocket connections

var (
	// Coordinator Metrics
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buddybridge_refresh_duration_seconds",
			Help:    "Duration of coordinator refresh cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RefreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddybridge_refresh_cycles_total",
			Help: "Total refresh cycles by outcome",
		},
		[]string{"result"}, // "success", "auth_failed", "update_failed", "no_children"
	)

	TrackedChildren = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddybridge_tracked_children",
			Help: "Number of children currently tracked by the coordinator",
		},
	)

	ChildrenAdopted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddybridge_children_adopted_total",
			Help: "Total children adopted during reconciliation",
		},
	)

	ChildrenRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddybridge_children_removed_total",
			Help: "Total stale child device records removed during reconciliation",
		},
	)

	SnapshotTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddybridge_snapshot_timestamp_seconds",
			Help: "Unix timestamp of the last published snapshot",
		},
	)

	// Per-category fetch metrics
	CategoryFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddybridge_category_fetch_failures_total",
			Help: "Per-category record fetch failures absorbed as empty records",
		},
		[]string{"category", "cause"}, // cause: "client_error", "network"
	)

	// Gateway Metrics
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buddybridge_gateway_request_duration_seconds",
			Help:    "Duration of upstream Baby Buddy API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	GatewayRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddybridge_gateway_request_errors_total",
			Help: "Total upstream API request errors",
		},
		[]string{"method", "endpoint", "error_type"},
	)

	CompatRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddybridge_gateway_compat_retries_total",
			Help: "Create calls retried with a fallback timestamp for pre-v1.11 servers",
		},
		[]string{"field"}, // "time" or "date"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "buddybridge_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddybridge_circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddybridge_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "buddybridge_circuit_breaker_consecutive_failures",
			Help: "Current consecutive failures tracked by the circuit breaker",
		},
		[]string{"name"},
	)

	// Write path metrics
	ActionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddybridge_action_requests_total",
			Help: "User-initiated write actions by kind and outcome",
		},
		[]string{"action", "result"}, // result: "success", "invalid", "error"
	)

	// HTTP API Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buddybridge_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddybridge_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddybridge_websocket_connections",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddybridge_websocket_messages_sent_total",
			Help: "Total WebSocket messages broadcast to clients",
		},
	)
)

// RecordRefresh records the outcome and duration of one refresh cycle.
func RecordRefresh(result string, duration time.Duration) {
	RefreshCycles.WithLabelValues(result).Inc()
	RefreshDuration.Observe(duration.Seconds())
}

// RecordGatewayRequest records one upstream API request's duration and,
// when err is non-nil, classifies its failure.
func RecordGatewayRequest(method, endpoint string, duration time.Duration, errType string) {
	GatewayRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if errType != "" {
		GatewayRequestErrors.WithLabelValues(method, endpoint, errType).Inc()
	}
}

// RecordHTTPRequest records an HTTP API request for latency tracking.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight HTTP request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPRequestsInFlight.Inc()
	} else {
		HTTPRequestsInFlight.Dec()
	}
}
