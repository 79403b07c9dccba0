// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package api

import (
	"net/http"
	"time"
)

// HealthStatus reports the bridge's view of itself and of upstream.
type HealthStatus struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	TrackedChildren int       `json:"tracked_children"`
	PollInterval    string    `json:"poll_interval"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	BreakerState    string    `json:"breaker_state,omitempty"`
	WSClients       int       `json:"ws_clients"`
}

// Health reports overall health. The bridge is healthy when it has a
// published snapshot and the most recent refresh succeeded; degraded
// when it is serving stale data.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.coord.Snapshot()
	lastErr := h.coord.LastError()

	status := "healthy"
	statusCode := http.StatusOK
	if snap == nil || lastErr != nil {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	hs := HealthStatus{
		Status:          status,
		Uptime:          time.Since(h.startTime).Round(time.Second).String(),
		TrackedChildren: len(h.coord.TrackedIDs()),
		PollInterval:    h.coord.PollInterval().String(),
		LastSuccess:     h.coord.LastSuccess(),
		WSClients:       h.hub.ClientCount(),
	}
	if lastErr != nil {
		hs.LastError = lastErr.Error()
	}
	if h.breaker != nil {
		hs.BreakerState = h.breaker.State().String()
	}

	respondJSON(w, r, statusCode, hs)
}

// Liveness always succeeds while the process is up.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness succeeds once the first snapshot has been published.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.coord.Snapshot() == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "first refresh pending")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
