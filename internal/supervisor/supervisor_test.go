// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buddybridge/buddybridge/internal/logging"
)

// blockingRunner runs until canceled and counts invocations.
type blockingRunner struct {
	started atomic.Int32
}

func (r *blockingRunner) Serve(ctx context.Context) error {
	r.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

// fakePoller records lifecycle calls.
type fakePoller struct {
	started atomic.Bool
	stopped atomic.Bool
	err     error
}

func (p *fakePoller) Start(ctx context.Context) error {
	if p.err != nil {
		return p.err
	}
	p.started.Store(true)
	return nil
}

func (p *fakePoller) Stop() {
	p.stopped.Store(true)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestTreeRunsServices(t *testing.T) {
	t.Parallel()

	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())
	runner := &blockingRunner{}
	poller := &fakePoller{}

	tree.AddPollingService(NewPollerService("coordinator", poller))
	tree.AddAPIService(NewRunnerService("http-server", runner))

	ctx, cancel := context.WithCancel(context.Background())
	errChan := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return runner.started.Load() == 1 })
	waitFor(t, func() bool { return poller.started.Load() })

	cancel()
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree error = %v, want nil or context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}

	if !poller.stopped.Load() {
		t.Error("poller was not stopped on shutdown")
	}
}

func TestPollerServiceStartFailurePropagates(t *testing.T) {
	t.Parallel()

	startErr := errors.New("setup incomplete")
	svc := NewPollerService("coordinator", &fakePoller{err: startErr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, startErr) {
		t.Errorf("Serve() = %v, want %v", err, startErr)
	}
}

func TestRunnerServiceName(t *testing.T) {
	t.Parallel()

	svc := NewRunnerService("http-server", &blockingRunner{})
	if got := svc.String(); got != "http-server" {
		t.Errorf("String() = %q, want http-server", got)
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 || cfg.FailureBackoff != 15*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
