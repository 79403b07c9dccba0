// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/buddybridge/buddybridge/internal/logging"
)

// Backup streams a snapshot of the device registry in Badger's backup
// format. The download can be fed back through Registry.Restore to
// rebuild tracked-children state on a fresh install.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("buddybridge-registry-%s.bak", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if err := h.devices.Backup(w); err != nil {
		// Headers are already sent, so the client sees a truncated
		// stream. Log it; Badger's format detects truncation on load.
		logging.Ctx(r.Context()).Error().Err(err).Msg("Registry backup stream failed")
	}
}
