// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package registry

import (
	"fmt"
	"io"

	"github.com/buddybridge/buddybridge/internal/logging"
)

// Backup streams a full copy of the registry to w in Badger's backup
// format. Safe to run while the registry is in use.
func (r *Registry) Backup(w io.Writer) error {
	since, err := r.db.Backup(w, 0)
	if err != nil {
		return fmt.Errorf("registry: backup: %w", err)
	}
	logging.Debug().Uint64("version", since).Msg("Registry backup written")
	return nil
}

// Restore loads a backup stream written by Backup. Existing entries
// with the same keys are overwritten.
func (r *Registry) Restore(reader io.Reader) error {
	if err := r.db.Load(reader, 16); err != nil {
		return fmt.Errorf("registry: restore: %w", err)
	}
	logging.Info().Msg("Registry backup restored")
	return nil
}
