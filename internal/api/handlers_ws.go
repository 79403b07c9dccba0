// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package api

import (
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/buddybridge/buddybridge/internal/logging"
	"github.com/buddybridge/buddybridge/internal/websocket"
)

var upgrader = gorilla.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	// The bridge runs on a trusted home network behind the CORS
	// policy; the websocket endpoint accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades the connection and attaches it to the hub. The
// current snapshot is pushed immediately so new clients do not wait a
// full poll cycle.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()

	if snap := h.coord.Snapshot(); snap != nil {
		client.SendSnapshot(snap)
	}
}
