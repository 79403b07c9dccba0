// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/buddybridge/buddybridge/internal/models"
)

// failingAPI counts calls and always fails.
type failingAPI struct {
	calls atomic.Int32
	err   error
}

var _ API = (*failingAPI)(nil)

func (f *failingAPI) Connect(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

func (f *failingAPI) Children(ctx context.Context) (*models.ChildrenPage, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *failingAPI) First(ctx context.Context, endpoint string, childID int) (models.Record, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *failingAPI) Create(ctx context.Context, endpoint string, data map[string]any) (models.Record, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *failingAPI) Update(ctx context.Context, endpoint string, id int, data map[string]any) (models.Record, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *failingAPI) Delete(ctx context.Context, endpoint string, id int) error {
	f.calls.Add(1)
	return f.err
}

func TestBreakerOpensAfterSustainedFailures(t *testing.T) {
	t.Parallel()

	inner := &failingAPI{err: errors.New("upstream down")}
	bc := NewBreakerClient(inner)
	ctx := context.Background()

	// The breaker needs at least 10 observed requests before it can
	// trip; all of them fail here.
	for i := 0; i < 10; i++ {
		if err := bc.Connect(ctx); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if got := bc.State(); got != gobreaker.StateOpen {
		t.Fatalf("state after 10 failures = %v, want open", got)
	}

	before := inner.calls.Load()
	err := bc.Connect(ctx)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("open-state error = %v, want gobreaker.ErrOpenState", err)
	}
	if inner.calls.Load() != before {
		t.Error("open breaker still forwarded the request upstream")
	}
}

func TestBreakerPreservesErrorWhileClosed(t *testing.T) {
	t.Parallel()

	innerErr := &StatusError{StatusCode: 500, Endpoint: "children"}
	bc := NewBreakerClient(&failingAPI{err: innerErr})

	_, err := bc.Children(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError passed through", err)
	}
	if bc.State() != gobreaker.StateClosed {
		t.Errorf("state after one failure = %v, want closed", bc.State())
	}
}
