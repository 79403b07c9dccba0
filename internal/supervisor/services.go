// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package supervisor

import (
	"context"
)

// Runner is the context-aware run loop shared by the websocket hub
// and the HTTP server. Serve blocks until the context is canceled.
type Runner interface {
	Serve(ctx context.Context) error
}

// Poller matches the coordinator's start/stop lifecycle.
type Poller interface {
	Start(ctx context.Context) error
	Stop()
}

// RunnerService adapts a Runner into a named suture service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps a Runner for supervision.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.Serve(ctx)
}

// String implements fmt.Stringer for suture's event log.
func (s *RunnerService) String() string {
	return s.name
}

// HubRunner adapts the websocket hub's Run method to Runner.
type HubRunner struct {
	Run func(ctx context.Context) error
}

// Serve implements Runner.
func (h HubRunner) Serve(ctx context.Context) error {
	return h.Run(ctx)
}

// PollerService runs a Poller under supervision: Start on entry,
// block on the context, Stop on the way out.
type PollerService struct {
	poller Poller
	name   string
}

// NewPollerService wraps the coordinator's poll loop for supervision.
func NewPollerService(name string, poller Poller) *PollerService {
	return &PollerService{poller: poller, name: name}
}

// Serve implements suture.Service.
func (s *PollerService) Serve(ctx context.Context) error {
	if err := s.poller.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.poller.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's event log.
func (s *PollerService) String() string {
	return s.name
}
