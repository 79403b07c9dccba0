// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package coordinator

import (
	"errors"
	"fmt"
)

// ErrNotReady indicates the upstream server could not be reached
// during setup. The caller should retry with its own backoff rather
// than treat it as fatal.
var ErrNotReady = errors.New("coordinator: Baby Buddy not ready")

// ErrNoChildren is the business-rule failure for an empty upstream
// roster. The bridge has nothing to track until a child exists.
var ErrNoChildren = errors.New("no children found, please add at least one child")

// UpdateFailedError marks a refresh cycle that failed at the roster
// fetch. The previous snapshot, if any, stays visible.
type UpdateFailedError struct {
	Err error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("coordinator: refresh failed: %v", e.Err)
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}
