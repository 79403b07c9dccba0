// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buddybridge/buddybridge/internal/config"
	"github.com/buddybridge/buddybridge/internal/middleware"
)

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(handler *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestLogger)

	// Liveness and readiness sit outside the rate limit so orchestrator
	// probes never get throttled.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", handler.Health)
		r.Get("/live", handler.Liveness)
		r.Get("/ready", handler.Readiness)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/snapshot", handler.Snapshot)
		r.Get("/backup", handler.Backup)
		r.Post("/refresh", handler.Refresh)
		r.Put("/poll-interval", handler.SetPollInterval)
		r.Get("/ws", handler.WebSocket)

		r.Route("/children", func(r chi.Router) {
			r.Get("/", handler.Children)
			r.Post("/", handler.AddChild)

			r.Route("/{childID}", func(r chi.Router) {
				r.Get("/", handler.Child)
				r.Get("/records", handler.ChildRecords)

				r.Post("/feedings", handler.AddFeeding)
				r.Post("/sleep", handler.AddSleep)
				r.Post("/tummy-times", handler.AddTummyTime)
				r.Post("/pumping", handler.AddPumping)
				r.Post("/changes", handler.AddDiaperChange)
				r.Post("/notes", handler.AddNote)
				r.Post("/bmi", handler.AddBMI)
				r.Post("/head-circumference", handler.AddHeadCircumference)
				r.Post("/height", handler.AddHeight)
				r.Post("/temperature", handler.AddTemperature)
				r.Post("/weight", handler.AddWeight)

				r.Post("/timer", handler.StartTimer)
				r.Delete("/timer", handler.StopTimer)

				r.Delete("/{category}/last", handler.DeleteLastEntry)
			})
		})
	})

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
