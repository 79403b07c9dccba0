// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

/*
Package coordinator owns the polling and reconciliation cycle.

On each cycle it fetches the upstream child roster, reconciles the
locally tracked child set (adopting new children, removing deleted
ones, mirroring both into the device registry), fans out per-child
per-category reads with soft failure handling, and publishes the
result as an immutable Snapshot. Readers always observe either the
previous complete snapshot or the new one, never a mix.

Failure classes are kept distinct: credential rejection is terminal,
transport failures during the roster fetch leave the previous snapshot
standing, an empty roster is a business-rule error, and individual
category fetch failures degrade to an empty record without failing
the cycle.
*/
package coordinator
