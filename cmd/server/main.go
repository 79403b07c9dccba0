// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

// Package main is the entry point for the Buddybridge server.
//
// Buddybridge polls a Baby Buddy instance's REST API and maintains an
// eventually consistent local snapshot of every tracked child's latest
// activity (feedings, sleep, diaper changes, measurements, timers). It
// exposes the snapshot over a local HTTP API and a WebSocket push
// channel, and forwards entry-creation requests upstream.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered load (env > file > defaults)
//  2. Logging: zerolog, configured from the logging section
//  3. Device registry: BadgerDB store of adopted children
//  4. Gateway: Baby Buddy API client behind a circuit breaker
//  5. Coordinator: connectivity probe, then the poll loop
//  6. WebSocket hub and HTTP server
//  7. Supervisor tree: all long-lived parts run under suture
//
// The server shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buddybridge/buddybridge/internal/actions"
	"github.com/buddybridge/buddybridge/internal/api"
	"github.com/buddybridge/buddybridge/internal/config"
	"github.com/buddybridge/buddybridge/internal/coordinator"
	"github.com/buddybridge/buddybridge/internal/gateway"
	"github.com/buddybridge/buddybridge/internal/logging"
	"github.com/buddybridge/buddybridge/internal/registry"
	"github.com/buddybridge/buddybridge/internal/supervisor"
	"github.com/buddybridge/buddybridge/internal/websocket"
)

// setupRetryInterval paces reconnect attempts while the upstream is
// unreachable at startup. Authorization failures abort instead, since
// a bad token never heals on its own.
const setupRetryInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("upstream", cfg.BabyBuddy.BaseURL()).
		Dur("poll_interval", cfg.BabyBuddy.PollInterval).
		Str("registry_path", cfg.Registry.Path).
		Msg("Starting Buddybridge")

	devices, err := registry.Open(&cfg.Registry)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open device registry")
	}
	defer func() {
		if err := devices.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing device registry")
		}
	}()

	if cfg.Registry.RestorePath != "" {
		if err := restoreRegistry(devices, cfg.Registry.RestorePath); err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Registry.RestorePath).Msg("Failed to restore registry backup")
		}
	}

	client := gateway.NewClient(&cfg.BabyBuddy)
	breaker := gateway.NewBreakerClient(client)

	coord := coordinator.New(breaker, devices, &cfg.BabyBuddy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := waitForSetup(ctx, coord); err != nil {
		logging.Fatal().Err(err).Msg("Coordinator setup failed")
	}

	svc := actions.New(breaker, coord)

	hub := websocket.NewHub()
	unsubscribe := coord.Subscribe(func(snap *coordinator.Snapshot) {
		hub.BroadcastSnapshot(snap)
	})
	defer unsubscribe()

	handler := api.NewHandler(coord, svc, hub, breaker, devices)
	router := api.NewRouter(handler, cfg)
	server := api.NewServer(&cfg.Server, router)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPollingService(supervisor.NewRunnerService("websocket-hub", supervisor.HubRunner{Run: hub.Run}))
	tree.AddPollingService(supervisor.NewPollerService("coordinator", coord))
	tree.AddAPIService(supervisor.NewRunnerService("http-server", server))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Buddybridge stopped gracefully")
}

// restoreRegistry loads a backup written by the /api/v1/backup endpoint
// into the device registry before the coordinator starts.
func restoreRegistry(devices *registry.Registry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := devices.Restore(f); err != nil {
		return err
	}
	logging.Info().Str("path", path).Msg("Registry restored from backup")
	return nil
}

// waitForSetup retries the connectivity probe until it succeeds, the
// token is rejected, or the context is canceled.
func waitForSetup(ctx context.Context, coord *coordinator.Coordinator) error {
	for {
		err := coord.Setup(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, gateway.ErrAuthorization) {
			return err
		}

		logging.Warn().Err(err).Dur("retry_in", setupRetryInterval).Msg("Baby Buddy not reachable yet")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(setupRetryInterval):
		}
	}
}
