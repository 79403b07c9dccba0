// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/buddybridge/buddybridge/internal/config"
	"github.com/buddybridge/buddybridge/internal/gateway"
	"github.com/buddybridge/buddybridge/internal/models"
	"github.com/buddybridge/buddybridge/internal/registry"
)

// fakeAPI is an in-memory gateway.API for coordinator tests.
type fakeAPI struct {
	mu sync.Mutex

	connectErr  error
	childrenErr error
	children    models.ChildrenPage

	// records maps "category/childID" to the latest record.
	records map[string]models.Record
	// firstErr maps "category/childID" to a forced fetch failure.
	firstErr map[string]error

	firstCalls int
}

var _ gateway.API = (*fakeAPI)(nil)

func newFakeAPI(childIDs ...int) *fakeAPI {
	f := &fakeAPI{
		records:  make(map[string]models.Record),
		firstErr: make(map[string]error),
	}
	f.setChildren(childIDs...)
	return f
}

func (f *fakeAPI) setChildren(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	page := models.ChildrenPage{Count: len(ids)}
	for _, id := range ids {
		page.Results = append(page.Results, models.Child{
			ID:        id,
			FirstName: fmt.Sprintf("Child%d", id),
			LastName:  "Test",
			Slug:      fmt.Sprintf("child%d-test", id),
		})
	}
	f.children = page
}

func (f *fakeAPI) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectErr
}

func (f *fakeAPI) Children(ctx context.Context) (*models.ChildrenPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.childrenErr != nil {
		return nil, f.childrenErr
	}
	page := f.children
	return &page, nil
}

func (f *fakeAPI) First(ctx context.Context, endpoint string, childID int) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.firstCalls++
	key := fmt.Sprintf("%s/%d", endpoint, childID)
	if err, ok := f.firstErr[key]; ok {
		return nil, err
	}
	if record, ok := f.records[key]; ok {
		return record, nil
	}
	return models.Record{}, nil
}

func (f *fakeAPI) Create(ctx context.Context, endpoint string, data map[string]any) (models.Record, error) {
	return models.Record{"id": 1}, nil
}

func (f *fakeAPI) Update(ctx context.Context, endpoint string, id int, data map[string]any) (models.Record, error) {
	return models.Record{"id": float64(id)}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, endpoint string, id int) error {
	return nil
}

func newTestCoordinator(t *testing.T, client gateway.API) (*Coordinator, *registry.Registry) {
	t.Helper()

	devices, err := registry.Open(&config.RegistryConfig{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	t.Cleanup(func() { _ = devices.Close() })

	cfg := &config.BabyBuddyConfig{
		Host:                 "http://babybuddy.local",
		APIKey:               "key",
		PollInterval:         time.Minute,
		RequestTimeout:       10 * time.Second,
		ImplicitActiveTimers: true,
	}
	return New(client, devices, cfg), devices
}

func sortedIDs(c *Coordinator) []int {
	ids := c.TrackedIDs()
	sort.Ints(ids)
	return ids
}

func TestSetupAuthFailure(t *testing.T) {
	t.Parallel()

	client := newFakeAPI()
	client.connectErr = gateway.ErrAuthorization
	c, _ := newTestCoordinator(t, client)

	err := c.Setup(context.Background())
	if !errors.Is(err, gateway.ErrAuthorization) {
		t.Errorf("Setup() error = %v, want ErrAuthorization", err)
	}
}

func TestSetupNotReady(t *testing.T) {
	t.Parallel()

	client := newFakeAPI()
	client.connectErr = &gateway.ConnectError{Err: errors.New("connection refused")}
	c, _ := newTestCoordinator(t, client)

	err := c.Setup(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Setup() error = %v, want ErrNotReady", err)
	}
}

func TestSetupBootstrapsTrackedSet(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1, 2)
	c, devices := newTestCoordinator(t, client)
	ctx := context.Background()

	for _, id := range []int{1, 2} {
		if err := devices.Put(ctx, registry.DeviceRecord{ChildID: id}); err != nil {
			t.Fatalf("Put(%d) error = %v", id, err)
		}
	}

	if err := c.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	ids := sortedIDs(c)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("tracked set after setup = %v, want [1 2]", ids)
	}
	if c.Snapshot() != nil {
		t.Error("Setup() published a snapshot, want refresh to be a separate step")
	}
}

func TestRefreshIdempotent(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1, 2, 3)
	c, _ := newTestCoordinator(t, client)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	first := sortedIDs(c)

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	second := sortedIDs(c)

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("tracked sets = %v then %v, want three IDs both times", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("tracked set changed across identical refreshes: %v vs %v", first, second)
		}
	}

	snap := c.Snapshot()
	if snap == nil || len(snap.Children) != 3 {
		t.Fatalf("snapshot children = %v", snap)
	}
}

func TestRefreshShrinkRemovesDevices(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1, 2, 3)
	c, devices := newTestCoordinator(t, client)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	client.setChildren(1, 3)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() after shrink error = %v", err)
	}

	ids := sortedIDs(c)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("tracked set = %v, want [1 3]", ids)
	}

	if _, err := devices.Get(ctx, 2); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("device record for removed child 2 still present (err = %v)", err)
	}
	if _, err := devices.Get(ctx, 1); err != nil {
		t.Errorf("device record for surviving child 1 missing: %v", err)
	}
}

func TestRefreshGrowAdoptsChildren(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, devices := newTestCoordinator(t, client)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	client.setChildren(1, 2)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() after grow error = %v", err)
	}

	ids := sortedIDs(c)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("tracked set = %v, want [1 2]", ids)
	}

	record, err := devices.Get(ctx, 2)
	if err != nil {
		t.Fatalf("device record for adopted child missing: %v", err)
	}
	if record.Name != "Child2 Test" {
		t.Errorf("adopted device name = %q", record.Name)
	}
	if record.DashboardURL != "http://babybuddy.local/children/child2-test/dashboard/" {
		t.Errorf("adopted device dashboard URL = %q", record.DashboardURL)
	}
}

func TestRefreshZeroChildren(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, _ := newTestCoordinator(t, client)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before := c.Snapshot()

	client.setChildren()
	err := c.Refresh(ctx)
	if !errors.Is(err, ErrNoChildren) {
		t.Fatalf("Refresh() with empty roster error = %v, want ErrNoChildren", err)
	}

	if c.Snapshot() != before {
		t.Error("failed cycle replaced the previous snapshot")
	}
	if got := c.LastError(); !errors.Is(got, ErrNoChildren) {
		t.Errorf("LastError() = %v, want ErrNoChildren", got)
	}
}

func TestRefreshAuthFailure(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, _ := newTestCoordinator(t, client)
	ctx := context.Background()

	client.childrenErr = gateway.ErrAuthorization
	err := c.Refresh(ctx)
	if !errors.Is(err, gateway.ErrAuthorization) {
		t.Errorf("Refresh() error = %v, want ErrAuthorization", err)
	}
}

func TestRefreshNetworkFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, _ := newTestCoordinator(t, client)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before := c.Snapshot()

	client.childrenErr = &gateway.ConnectError{Err: errors.New("timeout")}
	err := c.Refresh(ctx)

	var ufe *UpdateFailedError
	if !errors.As(err, &ufe) {
		t.Fatalf("Refresh() error = %v, want UpdateFailedError", err)
	}
	if c.Snapshot() != before {
		t.Error("failed cycle replaced the previous snapshot")
	}
	if len(sortedIDs(c)) != 1 {
		t.Errorf("tracked set changed on failed cycle: %v", sortedIDs(c))
	}
}

func TestCategoryIsolation(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(5)
	client.records["weight/5"] = models.Record{"id": float64(10), "weight": "4.2"}
	client.records["sleep/5"] = models.Record{"id": float64(11), "duration": "01:00:00"}
	client.firstErr["temperature/5"] = &gateway.ConnectError{Err: errors.New("timeout")}

	c, _ := newTestCoordinator(t, client)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v, want cycle success despite category failure", err)
	}

	snap := c.Snapshot()
	if snap == nil {
		t.Fatal("no snapshot published")
	}
	if !snap.Record(5, models.CategoryTemperature).IsEmpty() {
		t.Error("failed category is not empty in snapshot")
	}
	if snap.Record(5, models.CategoryWeight).IsEmpty() {
		t.Error("healthy category came back empty")
	}
	if snap.Record(5, models.CategorySleep).IsEmpty() {
		t.Error("healthy category came back empty")
	}
	if len(snap.Children) != 1 {
		t.Errorf("children list affected by category failure: %v", snap.Children)
	}
}

func TestSnapshotCoversAllCategories(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1, 2)
	c, _ := newTestCoordinator(t, client)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snap := c.Snapshot()
	for _, child := range snap.Children {
		byCategory, ok := snap.Records[child.ID]
		if !ok {
			t.Fatalf("child %d missing from records", child.ID)
		}
		if len(byCategory) != len(models.Categories()) {
			t.Errorf("child %d has %d categories, want %d", child.ID, len(byCategory), len(models.Categories()))
		}
	}
}

func TestTimerActiveImplicit(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	client.records["timers/1"] = models.Record{"id": float64(4), "start": "2026-08-30T08:00:00Z"}

	c, _ := newTestCoordinator(t, client)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if !c.Snapshot().TimerActive(1) {
		t.Error("flagless timer record not treated as active with implicit mode on")
	}

	client.records["timers/1"] = models.Record{"id": float64(4), "active": false}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if c.Snapshot().TimerActive(1) {
		t.Error("explicit active=false overridden by implicit mode")
	}
}

func TestSubscriberNotified(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, _ := newTestCoordinator(t, client)

	var got []*Snapshot
	unsubscribe := c.Subscribe(func(s *Snapshot) {
		got = append(got, s)
	})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("subscriber called %d times, want 1", len(got))
	}
	if got[0] != c.Snapshot() {
		t.Error("subscriber received a different snapshot than published")
	}

	unsubscribe()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("unsubscribed listener still called (%d calls)", len(got))
	}
}

func TestRequestRefreshCoalesces(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, _ := newTestCoordinator(t, client)

	for i := 0; i < 5; i++ {
		c.RequestRefresh()
	}
	if pending := len(c.refreshChan); pending != 1 {
		t.Errorf("%d pending refresh requests, want 1 (coalesced)", pending)
	}
}

func TestSetPollInterval(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, _ := newTestCoordinator(t, client)

	if err := c.SetPollInterval(0); err == nil {
		t.Error("SetPollInterval(0) accepted")
	}
	if err := c.SetPollInterval(30 * time.Second); err != nil {
		t.Fatalf("SetPollInterval() error = %v", err)
	}
	if c.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval() = %v", c.PollInterval())
	}
	if pending := len(c.intervalChan); pending != 1 {
		t.Errorf("interval change not signalled to poll loop (pending = %d)", pending)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	client := newFakeAPI(1)
	c, _ := newTestCoordinator(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The initial poll runs before the first tick.
	deadline := time.After(2 * time.Second)
	for c.Snapshot() == nil {
		select {
		case <-deadline:
			t.Fatal("no snapshot published after Start()")
		case <-time.After(10 * time.Millisecond):
		}
	}

	c.Stop()
	c.Stop() // second Stop is a no-op
}
