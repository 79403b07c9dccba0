// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package actions

import "errors"

// ValidationError rejects a request before anything is sent upstream.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a local validation failure, as
// opposed to an upstream write failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
