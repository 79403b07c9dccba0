// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package coordinator

import (
	"time"

	"github.com/buddybridge/buddybridge/internal/models"
)

// Snapshot is the atomic result of one successful refresh cycle. It is
// immutable after publication; each cycle builds a fresh one and swaps
// it in wholesale. Every child in Children has an entry in Records,
// even when all its categories are empty.
type Snapshot struct {
	Children  []models.Child                                `json:"children"`
	Records   map[int]map[models.Category]models.Record     `json:"records"`
	Timestamp time.Time                                     `json:"timestamp"`

	implicitTimers bool
}

// Child returns the child with the given ID, if present.
func (s *Snapshot) Child(id int) (*models.Child, bool) {
	for i := range s.Children {
		if s.Children[i].ID == id {
			return &s.Children[i], true
		}
	}
	return nil, false
}

// Record returns the latest record for one child and category. An
// empty record means the upstream has no entry there.
func (s *Snapshot) Record(childID int, key models.Category) models.Record {
	byCategory, ok := s.Records[childID]
	if !ok {
		return models.Record{}
	}
	return byCategory[key]
}

// TimerActive reports whether the child has an in-progress timer,
// applying the configured interpretation for upstream versions that
// omit the active flag.
func (s *Snapshot) TimerActive(childID int) bool {
	return s.Record(childID, models.CategoryTimers).ActiveTimer(s.implicitTimers)
}
