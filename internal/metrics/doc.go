// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

/*
Package metrics provides Prometheus metrics collection and export.

The package instruments:
  - Coordinator refresh cycles (duration, outcome, reconciliation counts)
  - Per-category record fetches and their absorbed failures
  - Upstream gateway requests and the circuit breaker protecting them
  - Write-path actions
  - HTTP API latency and WebSocket connections

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8710/metrics

All metrics are registered via promauto at package init; handlers and the
coordinator record through the helper functions or the metric vars directly.
*/
package metrics
