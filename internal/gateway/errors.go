// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package gateway

import (
	"errors"
	"fmt"
)

// ErrAuthorization indicates the API key was rejected by the upstream
// server (HTTP 401 or 403). Retrying without a config change is
// pointless, so callers should surface this instead of backing off.
var ErrAuthorization = errors.New("gateway: invalid API key")

// ConnectError wraps a transport-level failure reaching the upstream
// server (DNS, connection refused, timeout). These are retryable.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("gateway: cannot reach Baby Buddy: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response from the upstream API with its
// decoded body preserved for callers that need to inspect serializer
// error payloads.
type StatusError struct {
	StatusCode int
	Endpoint   string
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("gateway: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("gateway: %s returned status %d: %s", e.Endpoint, e.StatusCode, string(e.Body))
}

// IsClientError reports whether err is an upstream 4xx response. A 4xx
// on a category fetch means the endpoint or filter is unsupported by
// this Baby Buddy version and the category should be skipped, not
// treated as a cycle failure.
func IsClientError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500
	}
	return false
}
