// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package actions

import (
	"fmt"
	"strings"
)

// Choice sets accepted by the upstream serializers. Matching is
// case-insensitive; payloads carry the lowercase form.
var (
	DiaperTypes   = []string{"Wet", "Solid", "Wet and Solid"}
	DiaperColors  = []string{"Black", "Brown", "Green", "Yellow"}
	FeedingTypes  = []string{"Breast milk", "Formula", "Fortified breast milk", "Solid food"}
	FeedingMethods = []string{
		"Bottle",
		"Left breast",
		"Right breast",
		"Both breasts",
		"Parent fed",
		"Self fed",
	}
)

// normalizeChoice matches value against choices case-insensitively and
// returns the lowercase canonical form.
func normalizeChoice(field, value string, choices []string) (string, error) {
	for _, choice := range choices {
		if strings.EqualFold(value, choice) {
			return strings.ToLower(choice), nil
		}
	}
	return "", &ValidationError{
		Message: fmt.Sprintf("invalid %s %q, must be one of: %s", field, value, strings.Join(choices, ", ")),
	}
}
