// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buddybridge/buddybridge/internal/config"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := Open(&config.RegistryConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestPutGetRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	want := DeviceRecord{
		ChildID:      3,
		Name:         "Ada Lovelace",
		Slug:         "ada-lovelace",
		DashboardURL: "http://babybuddy.local/children/ada-lovelace/dashboard/",
		CreatedAt:    time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}

	if err := r.Put(ctx, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := r.Get(ctx, 3)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != want.Name || got.Slug != want.Slug || got.DashboardURL != want.DashboardURL {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestGetMissing(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() for missing child error = %v, want ErrNotFound", err)
	}
}

func TestPutReplaces(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Put(ctx, DeviceRecord{ChildID: 1, Name: "Old Name"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := r.Put(ctx, DeviceRecord{ChildID: 1, Name: "New Name"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := r.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "New Name" {
		t.Errorf("Name = %q after replace, want New Name", got.Name)
	}

	records, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("List() returned %d records after replace, want 1", len(records))
	}
}

func TestRemove(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Put(ctx, DeviceRecord{ChildID: 2, Name: "X"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := r.Remove(ctx, 2); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := r.Get(ctx, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Remove() error = %v, want ErrNotFound", err)
	}

	// Removing an absent record is a no-op.
	if err := r.Remove(ctx, 2); err != nil {
		t.Errorf("Remove() of absent record error = %v", err)
	}
}

func TestListAndChildIDsSorted(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, id := range []int{9, 1, 5} {
		if err := r.Put(ctx, DeviceRecord{ChildID: id}); err != nil {
			t.Fatalf("Put(%d) error = %v", id, err)
		}
	}

	ids, err := r.ChildIDs(ctx)
	if err != nil {
		t.Fatalf("ChildIDs() error = %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 5 || ids[2] != 9 {
		t.Errorf("ChildIDs() = %v, want [1 5 9]", ids)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.RegistryConfig{Path: dir}
	ctx := context.Background()

	r, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := r.Put(ctx, DeviceRecord{ChildID: 7, Slug: "kid"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = r2.Close() }()

	got, err := r2.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Slug != "kid" {
		t.Errorf("Slug after reopen = %q", got.Slug)
	}
}

func TestInMemoryRegistry(t *testing.T) {
	r, err := Open(&config.RegistryConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open(in-memory) error = %v", err)
	}
	defer func() { _ = r.Close() }()

	ctx := context.Background()
	if err := r.Put(ctx, DeviceRecord{ChildID: 1}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	ids, err := r.ChildIDs(ctx)
	if err != nil || len(ids) != 1 {
		t.Errorf("ChildIDs() = %v, %v", ids, err)
	}
}
