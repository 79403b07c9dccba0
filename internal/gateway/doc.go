// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

// Package gateway implements the REST client for the Baby Buddy API.
//
// The Client maps one-to-one onto the upstream endpoint directory
// (children, feedings, sleep, timers, ...), handles token
// authentication, and papers over serializer differences between Baby
// Buddy releases. BreakerClient wraps it with a circuit breaker so a
// slow or dead upstream cannot pile up in-flight requests.
package gateway
