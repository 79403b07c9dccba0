// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is the most recent entry in one tracked category for one child.
// Fields vary by category, so records are kept generic; typed access goes
// through the helper methods below. An empty Record (no keys) means the
// remote system has no entry for that category, which is a normal
// condition rather than an error.
type Record map[string]any

// RecordPage is one page of a paginated category listing.
type RecordPage struct {
	Count   int      `json:"count"`
	Results []Record `json:"results"`
}

// IsEmpty reports whether the record holds no data.
func (r Record) IsEmpty() bool {
	return len(r) == 0
}

// ID returns the record's identifier, used for deletion.
// JSON numbers decode as float64.
func (r Record) ID() (int, bool) {
	switch v := r["id"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// String returns the named field as a string, or "" if absent.
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Float returns the named field as a float64.
// Baby Buddy serializes decimal measurements as JSON strings on some
// versions, so both representations are accepted.
func (r Record) Float(field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Time parses the named field as an RFC 3339 timestamp.
func (r Record) Time(field string) (time.Time, bool) {
	s := r.String(field)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ActiveTimer reports whether a timer record represents an in-progress
// session. Baby Buddy >= v2 reports an explicit "active" flag; earlier
// versions omit it but only ever return active timers from a
// child-filtered query, so with implicit=true any non-empty record
// counts as active.
func (r Record) ActiveTimer(implicit bool) bool {
	if r.IsEmpty() {
		return false
	}
	if v, ok := r["active"].(bool); ok {
		return v
	}
	return implicit
}

// ParseDuration parses a Baby Buddy duration string of the form
// "HH:MM:SS" or "HH:MM:SS.ffffff" (days prefixed as "D day[s], ").
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var days int
	if idx := strings.Index(s, "day"); idx != -1 {
		d, err := strconv.Atoi(strings.TrimSpace(s[:idx]))
		if err != nil {
			return 0, fmt.Errorf("invalid day count in duration %q", s)
		}
		days = d
		if comma := strings.Index(s, ","); comma != -1 {
			s = strings.TrimSpace(s[comma+1:])
		} else {
			s = "0:00:00"
		}
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in duration %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in duration %q", s)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in duration %q", s)
	}

	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, nil
}
