// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package models

import "time"

// Category is one kind of tracked event or measurement.
type Category string

// The fixed, closed category set tracked per child. Keys match the
// Baby Buddy API endpoint directory.
const (
	CategoryBMI               Category = "bmi"
	CategoryChanges           Category = "changes"
	CategoryFeedings          Category = "feedings"
	CategoryHeadCircumference Category = "head-circumference"
	CategoryHeight            Category = "height"
	CategoryNotes             Category = "notes"
	CategoryPumping           Category = "pumping"
	CategorySleep             Category = "sleep"
	CategoryTemperature       Category = "temperature"
	CategoryTimers            Category = "timers"
	CategoryTummyTimes        Category = "tummy-times"
	CategoryWeight            Category = "weight"
)

// StateKind selects how a category's display state is derived from its
// latest record.
type StateKind int

const (
	// StateField reads a record field verbatim.
	StateField StateKind = iota

	// StateTimestamp parses a record field as an RFC 3339 timestamp.
	StateTimestamp

	// StateDurationMinutes parses a record field as a Baby Buddy
	// duration and reports whole minutes.
	StateDurationMinutes
)

// StateSource is an explicit tagged variant describing state derivation:
// either a direct field lookup or a computed transform of one field.
type StateSource struct {
	Kind  StateKind
	Field string
}

// Value derives the display state from a record. The second return is
// false when the record is empty or the source field cannot be parsed.
func (s StateSource) Value(r Record) (any, bool) {
	if r.IsEmpty() {
		return nil, false
	}

	switch s.Kind {
	case StateTimestamp:
		t, ok := r.Time(s.Field)
		if !ok {
			return nil, false
		}
		return t, true

	case StateDurationMinutes:
		d, err := ParseDuration(r.String(s.Field))
		if err != nil {
			return nil, false
		}
		return int(d / time.Minute), true

	default:
		v, ok := r[s.Field]
		return v, ok
	}
}

// CategoryDescriptor binds a category key to its state derivation and
// unit of measurement.
type CategoryDescriptor struct {
	Key   Category
	State StateSource
	Unit  string
}

// Descriptors enumerates the tracked categories in a stable order.
// Mirrors the sensor descriptions of the upstream integration: amounts
// and measurements pass through directly, diaper changes / notes /
// timers surface their timestamp, sleep and tummy time surface their
// duration in minutes.
var Descriptors = []CategoryDescriptor{
	{Key: CategoryBMI, State: StateSource{Kind: StateField, Field: "bmi"}},
	{Key: CategoryChanges, State: StateSource{Kind: StateTimestamp, Field: "time"}},
	{Key: CategoryFeedings, State: StateSource{Kind: StateField, Field: "amount"}},
	{Key: CategoryHeadCircumference, State: StateSource{Kind: StateField, Field: "head_circumference"}},
	{Key: CategoryHeight, State: StateSource{Kind: StateField, Field: "height"}},
	{Key: CategoryNotes, State: StateSource{Kind: StateTimestamp, Field: "time"}},
	{Key: CategoryPumping, State: StateSource{Kind: StateField, Field: "amount"}},
	{Key: CategorySleep, State: StateSource{Kind: StateDurationMinutes, Field: "duration"}, Unit: "min"},
	{Key: CategoryTemperature, State: StateSource{Kind: StateField, Field: "temperature"}},
	{Key: CategoryTimers, State: StateSource{Kind: StateTimestamp, Field: "start"}},
	{Key: CategoryTummyTimes, State: StateSource{Kind: StateDurationMinutes, Field: "duration"}, Unit: "min"},
	{Key: CategoryWeight, State: StateSource{Kind: StateField, Field: "weight"}},
}

// Categories returns the closed category key set in descriptor order.
func Categories() []Category {
	keys := make([]Category, len(Descriptors))
	for i, d := range Descriptors {
		keys[i] = d.Key
	}
	return keys
}

// DescriptorFor returns the descriptor for a category key.
func DescriptorFor(key Category) (CategoryDescriptor, bool) {
	for _, d := range Descriptors {
		if d.Key == key {
			return d, true
		}
	}
	return CategoryDescriptor{}, false
}

// ValidCategory reports whether key is part of the closed category set.
func ValidCategory(key string) bool {
	_, ok := DescriptorFor(Category(key))
	return ok
}
