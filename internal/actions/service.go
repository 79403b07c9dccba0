// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

/*
service.go - User-initiated write actions

Translates entry-creation requests (feedings, sleep, measurements,
timers, ...) into gateway writes. Every action validates locally
before touching the network, surfaces upstream failures to the
caller, and schedules a coordinator refresh after a successful write
so the next snapshot reflects it.
*/

package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/buddybridge/buddybridge/internal/coordinator"
	"github.com/buddybridge/buddybridge/internal/gateway"
	"github.com/buddybridge/buddybridge/internal/logging"
	"github.com/buddybridge/buddybridge/internal/metrics"
	"github.com/buddybridge/buddybridge/internal/models"
)

// Snapshotter is the coordinator surface the action layer needs:
// reading the current snapshot (for timer and last-entry lookups) and
// scheduling a refresh after writes.
type Snapshotter interface {
	Snapshot() *coordinator.Snapshot
	RequestRefresh()
}

// Service executes user-initiated writes against the upstream API.
type Service struct {
	client gateway.API
	coord  Snapshotter

	// now is swappable for deterministic validation in tests.
	now func() time.Time
}

// New creates the action service.
func New(client gateway.API, coord Snapshotter) *Service {
	return &Service{
		client: client,
		coord:  coord,
		now:    time.Now,
	}
}

// ChildRequest creates a new tracked child upstream.
type ChildRequest struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

// MeasurementRequest is a single-value entry (BMI, height, weight,
// head circumference, temperature).
type MeasurementRequest struct {
	ChildID int        `json:"child_id"`
	Value   float64    `json:"value"`
	Time    *time.Time `json:"time,omitempty"`
	Notes   string     `json:"notes,omitempty"`
	Tags    []string   `json:"tags,omitempty"`
}

// DiaperChangeRequest records a diaper change.
type DiaperChangeRequest struct {
	ChildID int        `json:"child_id"`
	Type    string     `json:"type"`
	Color   string     `json:"color,omitempty"`
	Amount  *float64   `json:"amount,omitempty"`
	Time    *time.Time `json:"time,omitempty"`
	Notes   string     `json:"notes,omitempty"`
	Tags    []string   `json:"tags,omitempty"`
}

// NoteRequest records a free-form note.
type NoteRequest struct {
	ChildID int        `json:"child_id"`
	Note    string     `json:"note"`
	Time    *time.Time `json:"time,omitempty"`
	Tags    []string   `json:"tags,omitempty"`
}

// TimedEntry carries the fields shared by duration-style entries.
// Timer and Start are mutually exclusive: with Timer set the entry
// closes the child's active timer, otherwise an explicit (or implied
// current) start and end are sent.
type TimedEntry struct {
	ChildID int        `json:"child_id"`
	Timer   bool       `json:"timer,omitempty"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	Tags    []string   `json:"tags,omitempty"`
}

// FeedingRequest records a feeding.
type FeedingRequest struct {
	TimedEntry
	Type   string   `json:"type"`
	Method string   `json:"method"`
	Amount *float64 `json:"amount,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

// SleepRequest records a sleep session.
type SleepRequest struct {
	TimedEntry
	Nap   *bool  `json:"nap,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// TummyTimeRequest records a tummy time session.
type TummyTimeRequest struct {
	TimedEntry
	Milestone string `json:"milestone,omitempty"`
}

// PumpingRequest records a pumping session.
type PumpingRequest struct {
	TimedEntry
	Amount float64 `json:"amount"`
	Notes  string  `json:"notes,omitempty"`
}

// TimerRequest starts a named timer for a child.
type TimerRequest struct {
	ChildID int        `json:"child_id"`
	Name    string     `json:"name,omitempty"`
	Start   *time.Time `json:"start,omitempty"`
}

// AddChild creates a new child. The coordinator adopts it on the next
// refresh, which is requested immediately.
func (s *Service) AddChild(ctx context.Context, req ChildRequest) (models.Record, error) {
	if req.FirstName == "" || req.LastName == "" {
		return nil, s.reject("add_child", "first name and last name are required")
	}

	birthDate := s.now()
	if req.BirthDate != nil {
		birthDate = *req.BirthDate
	}
	if err := s.validateTimestamp(birthDate); err != nil {
		return nil, s.fail("add_child", err)
	}

	data := map[string]any{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"birth_date": birthDate.Format("2006-01-02"),
	}
	return s.create(ctx, "add_child", "children", data)
}

// AddBMI records a BMI measurement.
func (s *Service) AddBMI(ctx context.Context, req MeasurementRequest) (models.Record, error) {
	return s.addMeasurement(ctx, "add_bmi", "bmi", "bmi", dateField, req)
}

// AddHeadCircumference records a head circumference measurement.
func (s *Service) AddHeadCircumference(ctx context.Context, req MeasurementRequest) (models.Record, error) {
	return s.addMeasurement(ctx, "add_head_circumference", "head-circumference", "head_circumference", dateField, req)
}

// AddHeight records a height measurement.
func (s *Service) AddHeight(ctx context.Context, req MeasurementRequest) (models.Record, error) {
	return s.addMeasurement(ctx, "add_height", "height", "height", dateField, req)
}

// AddWeight records a weight measurement.
func (s *Service) AddWeight(ctx context.Context, req MeasurementRequest) (models.Record, error) {
	return s.addMeasurement(ctx, "add_weight", "weight", "weight", dateField, req)
}

// AddTemperature records a temperature reading. Unlike the date-based
// measurements this endpoint takes a full timestamp.
func (s *Service) AddTemperature(ctx context.Context, req MeasurementRequest) (models.Record, error) {
	return s.addMeasurement(ctx, "add_temperature", "temperature", "temperature", timeField, req)
}

// timestampStyle selects how a measurement endpoint encodes its moment.
type timestampStyle int

const (
	dateField timestampStyle = iota
	timeField
)

func (s *Service) addMeasurement(ctx context.Context, action, endpoint, field string, style timestampStyle, req MeasurementRequest) (models.Record, error) {
	if req.ChildID == 0 {
		return nil, s.reject(action, "child is required")
	}

	ts := s.now()
	if req.Time != nil {
		ts = *req.Time
	}
	if err := s.validateTimestamp(ts); err != nil {
		return nil, s.fail(action, err)
	}

	data := map[string]any{
		"child": req.ChildID,
		field:   req.Value,
	}
	switch style {
	case dateField:
		data["date"] = ts.Format("2006-01-02")
	case timeField:
		data["time"] = ts.Format(time.RFC3339)
	}
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	if len(req.Tags) > 0 {
		data["tags"] = req.Tags
	}
	return s.create(ctx, action, endpoint, data)
}

// AddDiaperChange records a diaper change. The upstream API wants
// separate wet/solid booleans; the request carries the human-facing
// type which is mapped here.
func (s *Service) AddDiaperChange(ctx context.Context, req DiaperChangeRequest) (models.Record, error) {
	const action = "add_diaper_change"

	if req.ChildID == 0 {
		return nil, s.reject(action, "child is required")
	}

	changeType, err := normalizeChoice("diaper type", req.Type, DiaperTypes)
	if err != nil {
		return nil, s.fail(action, err)
	}

	ts := s.now()
	if req.Time != nil {
		ts = *req.Time
	}
	if err := s.validateTimestamp(ts); err != nil {
		return nil, s.fail(action, err)
	}

	data := map[string]any{
		"child": req.ChildID,
		"time":  ts.Format(time.RFC3339),
		"wet":   changeType == "wet" || changeType == "wet and solid",
		"solid": changeType == "solid" || changeType == "wet and solid",
	}
	if req.Color != "" {
		color, err := normalizeChoice("diaper color", req.Color, DiaperColors)
		if err != nil {
			return nil, s.fail(action, err)
		}
		data["color"] = color
	}
	if req.Amount != nil {
		data["amount"] = *req.Amount
	}
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	if len(req.Tags) > 0 {
		data["tags"] = req.Tags
	}
	return s.create(ctx, action, "changes", data)
}

// AddNote records a note.
func (s *Service) AddNote(ctx context.Context, req NoteRequest) (models.Record, error) {
	const action = "add_note"

	if req.ChildID == 0 {
		return nil, s.reject(action, "child is required")
	}
	if req.Note == "" {
		return nil, s.reject(action, "note text is required")
	}

	ts := s.now()
	if req.Time != nil {
		ts = *req.Time
	}
	if err := s.validateTimestamp(ts); err != nil {
		return nil, s.fail(action, err)
	}

	data := map[string]any{
		"child": req.ChildID,
		"note":  req.Note,
		"time":  ts.Format(time.RFC3339),
	}
	if len(req.Tags) > 0 {
		data["tags"] = req.Tags
	}
	return s.create(ctx, action, "notes", data)
}

// AddFeeding records a feeding, either closing the child's active
// timer or with explicit start and end times.
func (s *Service) AddFeeding(ctx context.Context, req FeedingRequest) (models.Record, error) {
	const action = "add_feeding"

	feedingType, err := normalizeChoice("feeding type", req.Type, FeedingTypes)
	if err != nil {
		return nil, s.fail(action, err)
	}
	method, err := normalizeChoice("feeding method", req.Method, FeedingMethods)
	if err != nil {
		return nil, s.fail(action, err)
	}

	data, err := s.commonFields(req.TimedEntry)
	if err != nil {
		return nil, s.fail(action, err)
	}

	data["type"] = feedingType
	data["method"] = method
	if req.Amount != nil {
		data["amount"] = *req.Amount
	}
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	return s.create(ctx, action, "feedings", data)
}

// AddSleep records a sleep session.
func (s *Service) AddSleep(ctx context.Context, req SleepRequest) (models.Record, error) {
	const action = "add_sleep"

	data, err := s.commonFields(req.TimedEntry)
	if err != nil {
		return nil, s.fail(action, err)
	}

	if req.Nap != nil {
		data["nap"] = *req.Nap
	}
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	return s.create(ctx, action, "sleep", data)
}

// AddTummyTime records a tummy time session.
func (s *Service) AddTummyTime(ctx context.Context, req TummyTimeRequest) (models.Record, error) {
	const action = "add_tummy_time"

	data, err := s.commonFields(req.TimedEntry)
	if err != nil {
		return nil, s.fail(action, err)
	}

	if req.Milestone != "" {
		data["milestone"] = req.Milestone
	}
	return s.create(ctx, action, "tummy-times", data)
}

// AddPumping records a pumping session.
func (s *Service) AddPumping(ctx context.Context, req PumpingRequest) (models.Record, error) {
	const action = "add_pumping"

	if req.Amount <= 0 {
		return nil, s.reject(action, "amount must be positive")
	}

	data, err := s.commonFields(req.TimedEntry)
	if err != nil {
		return nil, s.fail(action, err)
	}

	data["amount"] = req.Amount
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	return s.create(ctx, action, "pumping", data)
}

// StartTimer starts a timer for a child.
func (s *Service) StartTimer(ctx context.Context, req TimerRequest) (models.Record, error) {
	const action = "start_timer"

	if req.ChildID == 0 {
		return nil, s.reject(action, "child is required")
	}

	start := s.now()
	if req.Start != nil {
		start = *req.Start
	}
	if err := s.validateTimestamp(start); err != nil {
		return nil, s.fail(action, err)
	}

	data := map[string]any{
		"child": req.ChildID,
		"start": start.Format(time.RFC3339),
	}
	if req.Name != "" {
		data["name"] = req.Name
	}
	return s.create(ctx, action, "timers", data)
}

// StopTimer discards the child's active timer without recording an
// entry. Closing a timer into an entry goes through the add actions
// with Timer set instead.
func (s *Service) StopTimer(ctx context.Context, childID int) error {
	const action = "stop_timer"

	timerID, err := s.activeTimerID(childID)
	if err != nil {
		return s.fail(action, err)
	}

	if err := s.client.Delete(ctx, "timers", timerID); err != nil {
		logging.Error().Err(err).Int("child_id", childID).Int("timer_id", timerID).Msg("Failed to delete timer")
		return s.fail(action, err)
	}

	metrics.ActionRequests.WithLabelValues(action, "success").Inc()
	s.coord.RequestRefresh()
	return nil
}

// DeleteLastEntry deletes the most recent entry in one category for a
// child, based on the current snapshot.
func (s *Service) DeleteLastEntry(ctx context.Context, childID int, category string) error {
	const action = "delete_last_entry"

	if !models.ValidCategory(category) {
		return s.fail(action, &ValidationError{Message: fmt.Sprintf("unknown category %q", category)})
	}

	snap := s.coord.Snapshot()
	if snap == nil {
		return s.fail(action, &ValidationError{Message: "no data available yet"})
	}

	record := snap.Record(childID, models.Category(category))
	id, ok := record.ID()
	if !ok {
		return s.fail(action, &ValidationError{Message: fmt.Sprintf("no %s entry to delete for child %d", category, childID)})
	}

	if err := s.client.Delete(ctx, category, id); err != nil {
		logging.Error().Err(err).Int("child_id", childID).Str("category", category).Msg("Failed to delete entry")
		return s.fail(action, err)
	}

	metrics.ActionRequests.WithLabelValues(action, "success").Inc()
	s.coord.RequestRefresh()
	return nil
}

// commonFields builds the shared payload for duration-style entries,
// enforcing the timer-or-start exclusivity rule.
func (s *Service) commonFields(entry TimedEntry) (map[string]any, error) {
	if entry.ChildID == 0 {
		return nil, &ValidationError{Message: "child is required"}
	}
	if entry.Timer && entry.Start != nil {
		return nil, &ValidationError{Message: "timer and start are mutually exclusive"}
	}

	data := map[string]any{}

	if entry.Timer {
		timerID, err := s.activeTimerID(entry.ChildID)
		if err != nil {
			return nil, err
		}
		data["timer"] = timerID
	} else {
		start := s.now()
		if entry.Start != nil {
			start = *entry.Start
		}
		end := s.now()
		if entry.End != nil {
			end = *entry.End
		}
		if err := s.validateTimestamp(start); err != nil {
			return nil, err
		}
		if err := s.validateTimestamp(end); err != nil {
			return nil, err
		}

		data["child"] = entry.ChildID
		data["start"] = start.Format(time.RFC3339)
		data["end"] = end.Format(time.RFC3339)
	}

	if len(entry.Tags) > 0 {
		data["tags"] = entry.Tags
	}
	return data, nil
}

// activeTimerID resolves the child's in-progress timer from the
// current snapshot.
func (s *Service) activeTimerID(childID int) (int, error) {
	snap := s.coord.Snapshot()
	if snap == nil || !snap.TimerActive(childID) {
		return 0, &ValidationError{Message: "timer not found or stopped, timer must be active"}
	}

	id, ok := snap.Record(childID, models.CategoryTimers).ID()
	if !ok {
		return 0, &ValidationError{Message: "active timer has no identifier"}
	}
	return id, nil
}

// validateTimestamp rejects future timestamps before any network call.
func (s *Service) validateTimestamp(t time.Time) error {
	if t.After(s.now()) {
		return &ValidationError{Message: "time cannot be in the future"}
	}
	return nil
}

// create issues the POST, classifies the outcome for metrics, and
// schedules a refresh on success. Upstream failures propagate to the
// caller instead of being absorbed.
func (s *Service) create(ctx context.Context, action, endpoint string, data map[string]any) (models.Record, error) {
	record, err := s.client.Create(ctx, endpoint, data)
	if err != nil {
		metrics.ActionRequests.WithLabelValues(action, "error").Inc()
		logging.Error().Err(err).Str("action", action).Str("endpoint", endpoint).Msg("Write failed")
		return nil, err
	}

	metrics.ActionRequests.WithLabelValues(action, "success").Inc()
	logging.Debug().Str("action", action).Str("endpoint", endpoint).Msg("Entry created")
	s.coord.RequestRefresh()
	return record, nil
}

func (s *Service) reject(action, message string) error {
	return s.fail(action, &ValidationError{Message: message})
}

func (s *Service) fail(action string, err error) error {
	if IsValidation(err) {
		metrics.ActionRequests.WithLabelValues(action, "invalid").Inc()
	} else {
		metrics.ActionRequests.WithLabelValues(action, "error").Inc()
	}
	return err
}
