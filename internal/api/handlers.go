// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

/*
handlers.go - HTTP handlers

Read endpoints serve the coordinator's latest snapshot; write
endpoints go through the action service and report upstream failures
to the caller. Nothing here talks to Baby Buddy directly.
*/

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/buddybridge/buddybridge/internal/actions"
	"github.com/buddybridge/buddybridge/internal/coordinator"
	"github.com/buddybridge/buddybridge/internal/gateway"
	"github.com/buddybridge/buddybridge/internal/models"
	"github.com/buddybridge/buddybridge/internal/registry"
	"github.com/buddybridge/buddybridge/internal/websocket"
)

// Handler serves the bridge's HTTP API.
type Handler struct {
	coord     *coordinator.Coordinator
	actions   *actions.Service
	hub       *websocket.Hub
	breaker   *gateway.BreakerClient
	devices   *registry.Registry
	startTime time.Time
}

// NewHandler creates the handler set. breaker may be nil when the
// gateway runs without circuit breaking.
func NewHandler(coord *coordinator.Coordinator, svc *actions.Service, hub *websocket.Hub, breaker *gateway.BreakerClient, devices *registry.Registry) *Handler {
	return &Handler{
		coord:     coord,
		actions:   svc,
		hub:       hub,
		breaker:   breaker,
		devices:   devices,
		startTime: time.Now(),
	}
}

// Snapshot returns the full latest snapshot.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.coord.Snapshot()
	if snap == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no snapshot yet, first refresh pending")
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

// Children lists the children from the latest snapshot.
func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	snap := h.coord.Snapshot()
	if snap == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no snapshot yet, first refresh pending")
		return
	}
	respondJSON(w, r, http.StatusOK, snap.Children)
}

// childView is one child together with its latest category records.
type childView struct {
	Child       models.Child                     `json:"child"`
	Records     map[models.Category]models.Record `json:"records"`
	TimerActive bool                              `json:"timer_active"`
}

// Child returns one child with its latest records.
func (h *Handler) Child(w http.ResponseWriter, r *http.Request) {
	snap := h.coord.Snapshot()
	if snap == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no snapshot yet, first refresh pending")
		return
	}

	childID, ok := h.childID(w, r)
	if !ok {
		return
	}

	child, found := snap.Child(childID)
	if !found {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "unknown child")
		return
	}

	respondJSON(w, r, http.StatusOK, childView{
		Child:       *child,
		Records:     snap.Records[childID],
		TimerActive: snap.TimerActive(childID),
	})
}

// ChildRecords returns only the latest category records for one child.
func (h *Handler) ChildRecords(w http.ResponseWriter, r *http.Request) {
	snap := h.coord.Snapshot()
	if snap == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no snapshot yet, first refresh pending")
		return
	}

	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	records, found := snap.Records[childID]
	if !found {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "unknown child")
		return
	}
	respondJSON(w, r, http.StatusOK, records)
}

// AddChild creates a new child upstream.
func (h *Handler) AddChild(w http.ResponseWriter, r *http.Request) {
	var req actions.ChildRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.actions.AddChild(r.Context(), req)
	if err != nil {
		h.writeActionError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, record)
}

// Refresh schedules an immediate out-of-band poll.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.coord.RequestRefresh()
	respondJSON(w, r, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

// pollIntervalRequest reconfigures the poll timer.
type pollIntervalRequest struct {
	Seconds int `json:"seconds"`
}

// SetPollInterval updates the poll period and triggers a refresh.
func (h *Handler) SetPollInterval(w http.ResponseWriter, r *http.Request) {
	var req pollIntervalRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.coord.SetPollInterval(time.Duration(req.Seconds) * time.Second); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]int{"seconds": req.Seconds})
}

// Entry creation handlers. Each decodes its typed request, overrides
// the child ID from the URL, and delegates to the action service.

func (h *Handler) AddFeeding(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.FeedingRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(h.actions.AddFeeding(r.Context(), req))
}

func (h *Handler) AddSleep(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.SleepRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(h.actions.AddSleep(r.Context(), req))
}

func (h *Handler) AddTummyTime(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.TummyTimeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(h.actions.AddTummyTime(r.Context(), req))
}

func (h *Handler) AddPumping(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.PumpingRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(h.actions.AddPumping(r.Context(), req))
}

func (h *Handler) AddDiaperChange(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.DiaperChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(h.actions.AddDiaperChange(r.Context(), req))
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.NoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(h.actions.AddNote(r.Context(), req))
}

// measurement handlers share one body shape.

func (h *Handler) AddBMI(w http.ResponseWriter, r *http.Request) {
	h.addMeasurement(w, r, h.actions.AddBMI)
}

func (h *Handler) AddHeadCircumference(w http.ResponseWriter, r *http.Request) {
	h.addMeasurement(w, r, h.actions.AddHeadCircumference)
}

func (h *Handler) AddHeight(w http.ResponseWriter, r *http.Request) {
	h.addMeasurement(w, r, h.actions.AddHeight)
}

func (h *Handler) AddTemperature(w http.ResponseWriter, r *http.Request) {
	h.addMeasurement(w, r, h.actions.AddTemperature)
}

func (h *Handler) AddWeight(w http.ResponseWriter, r *http.Request) {
	h.addMeasurement(w, r, h.actions.AddWeight)
}

func (h *Handler) addMeasurement(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, req actions.MeasurementRequest) (models.Record, error)) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.MeasurementRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(fn(r.Context(), req))
}

// StartTimer starts a timer for the child in the URL.
func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req actions.TimerRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ChildID = childID
	h.created(w, r)(h.actions.StartTimer(r.Context(), req))
}

// StopTimer discards the child's active timer.
func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	if err := h.actions.StopTimer(r.Context(), childID); err != nil {
		h.writeActionError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "timer stopped"})
}

// DeleteLastEntry removes the most recent entry in a category.
func (h *Handler) DeleteLastEntry(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	category := chi.URLParam(r, "category")

	if err := h.actions.DeleteLastEntry(r.Context(), childID, category); err != nil {
		h.writeActionError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) childID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "childID"))
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid child ID")
		return 0, false
	}
	return id, true
}

// decode parses the JSON body into out. An empty body decodes to the
// zero request, so bodyless calls like starting an unnamed timer work.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(out)
	if err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// created returns a continuation that writes the outcome of an
// entry-creation action.
func (h *Handler) created(w http.ResponseWriter, r *http.Request) func(models.Record, error) {
	return func(record models.Record, err error) {
		if err != nil {
			h.writeActionError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusCreated, record)
	}
}

// writeActionError maps action failures onto HTTP statuses: local
// validation is the caller's fault, upstream failures are gateway
// problems.
func (h *Handler) writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case actions.IsValidation(err):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, gateway.ErrAuthorization):
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamAuth, "Baby Buddy rejected the configured API key")
	default:
		var ce *gateway.ConnectError
		if errors.As(err, &ce) {
			respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed, "Baby Buddy unreachable")
			return
		}
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed, err.Error())
	}
}
