// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buddybridge/buddybridge/internal/config"
	"github.com/buddybridge/buddybridge/internal/gateway"
	"github.com/buddybridge/buddybridge/internal/logging"
	"github.com/buddybridge/buddybridge/internal/metrics"
	"github.com/buddybridge/buddybridge/internal/models"
	"github.com/buddybridge/buddybridge/internal/registry"
)

// debounceWindow coalesces bursts of immediate-refresh requests into a
// single poll.
const debounceWindow = 500 * time.Millisecond

// Subscriber receives each newly published snapshot.
type Subscriber func(*Snapshot)

// Coordinator maintains an eventually consistent local view of the
// upstream children and their latest category records.
type Coordinator struct {
	client  gateway.API
	devices *registry.Registry
	cfg     *config.BabyBuddyConfig

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	tracked     map[int]struct{}
	snapshot    *Snapshot
	lastErr     error
	lastSuccess time.Time
	interval    time.Duration

	refreshChan  chan struct{}
	intervalChan chan time.Duration

	subMu       sync.Mutex
	subscribers map[int]Subscriber
	nextSubID   int
}

// New creates a coordinator. Setup must succeed before Start.
func New(client gateway.API, devices *registry.Registry, cfg *config.BabyBuddyConfig) *Coordinator {
	return &Coordinator{
		client:       client,
		devices:      devices,
		cfg:          cfg,
		tracked:      make(map[int]struct{}),
		interval:     cfg.PollInterval,
		refreshChan:  make(chan struct{}, 1),
		intervalChan: make(chan time.Duration, 1),
		subscribers:  make(map[int]Subscriber),
	}
}

// Setup probes upstream connectivity and bootstraps the tracked child
// set from the device registry. It does not poll; the first refresh is
// a separate step so setup failures and first-cycle failures stay
// distinguishable.
//
// Returns gateway.ErrAuthorization when the token is rejected (do not
// retry) and an error wrapping ErrNotReady for transport failures
// (retry later).
func (c *Coordinator) Setup(ctx context.Context) error {
	if err := c.client.Connect(ctx); err != nil {
		if errors.Is(err, gateway.ErrAuthorization) {
			logging.Error().Err(err).Msg("Baby Buddy rejected API key during setup")
			return err
		}
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	ids, err := c.devices.ChildIDs(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: bootstrap tracked set: %w", err)
	}

	c.mu.Lock()
	c.tracked = make(map[int]struct{}, len(ids))
	for _, id := range ids {
		c.tracked[id] = struct{}{}
	}
	c.mu.Unlock()

	metrics.TrackedChildren.Set(float64(len(ids)))
	logging.Info().Int("tracked_children", len(ids)).Msg("Coordinator setup complete")
	return nil
}

// Refresh runs one full poll cycle: fetch the roster, reconcile the
// tracked set and device registry, fan out category reads, and publish
// a new snapshot. Per-category failures degrade to empty records; only
// roster-level failures fail the cycle.
func (c *Coordinator) Refresh(ctx context.Context) error {
	start := time.Now()

	err := c.refresh(ctx)

	c.mu.Lock()
	c.lastErr = err
	if err == nil {
		c.lastSuccess = time.Now()
	}
	c.mu.Unlock()

	switch {
	case err == nil:
		metrics.RecordRefresh("success", time.Since(start))
	case errors.Is(err, gateway.ErrAuthorization):
		metrics.RecordRefresh("auth_failed", time.Since(start))
	case errors.Is(err, ErrNoChildren):
		metrics.RecordRefresh("no_children", time.Since(start))
	default:
		metrics.RecordRefresh("update_failed", time.Since(start))
	}

	return err
}

func (c *Coordinator) refresh(ctx context.Context) error {
	page, err := c.client.Children(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrAuthorization) {
			logging.Error().Err(err).Msg("Baby Buddy rejected API key during refresh")
			return err
		}
		logging.Warn().Err(err).Msg("Children fetch failed, keeping previous snapshot")
		return &UpdateFailedError{Err: err}
	}

	if err := c.reconcile(ctx, page); err != nil {
		return err
	}

	snapshot := c.buildSnapshot(ctx, page.Results)
	c.publish(snapshot)
	return nil
}

// reconcile brings the tracked child set and the device registry in
// line with the fetched roster. After it returns without error, the
// tracked set equals the roster's identifier set exactly.
func (c *Coordinator) reconcile(ctx context.Context, page *models.ChildrenPage) error {
	remote := make(map[int]struct{}, len(page.Results))
	for _, child := range page.Results {
		remote[child.ID] = struct{}{}
	}

	c.mu.Lock()
	var removed []int
	for id := range c.tracked {
		if _, ok := remote[id]; !ok {
			removed = append(removed, id)
		}
	}
	var added []models.Child
	for _, child := range page.Results {
		if _, ok := c.tracked[child.ID]; !ok {
			added = append(added, child)
		}
	}
	c.tracked = remote
	c.mu.Unlock()

	for _, id := range removed {
		if err := c.devices.Remove(ctx, id); err != nil {
			logging.Error().Err(err).Int("child_id", id).Msg("Failed to remove device record")
			continue
		}
		metrics.ChildrenRemoved.Inc()
		logging.Info().Int("child_id", id).Msg("Child removed upstream, dropping device record")
	}

	if page.Count == 0 {
		logging.Warn().Msg("Upstream returned zero children")
		return ErrNoChildren
	}

	for _, child := range added {
		record := registry.DeviceRecord{
			ChildID:      child.ID,
			Name:         child.FullName(),
			Slug:         child.Slug,
			DashboardURL: c.cfg.BaseURL() + child.DashboardPath(),
			CreatedAt:    time.Now(),
		}
		if err := c.devices.Put(ctx, record); err != nil {
			logging.Error().Err(err).Int("child_id", child.ID).Msg("Failed to persist device record")
			continue
		}
		metrics.ChildrenAdopted.Inc()
		logging.Info().Int("child_id", child.ID).Str("name", record.Name).Msg("Adopted new child")
	}

	metrics.TrackedChildren.Set(float64(len(remote)))
	return nil
}

// buildSnapshot fans out the per-child per-category reads. The fetches
// are independent, so they run concurrently; the snapshot is assembled
// only after every fetch has completed or failed soft.
func (c *Coordinator) buildSnapshot(ctx context.Context, children []models.Child) *Snapshot {
	type result struct {
		childID  int
		category models.Category
		record   models.Record
	}

	categories := models.Categories()
	results := make(chan result, len(children)*len(categories))

	var wg sync.WaitGroup
	for _, child := range children {
		for _, key := range categories {
			wg.Add(1)
			go func(childID int, key models.Category) {
				defer wg.Done()
				results <- result{childID, key, c.fetchLatest(ctx, childID, key)}
			}(child.ID, key)
		}
	}
	wg.Wait()
	close(results)

	records := make(map[int]map[models.Category]models.Record, len(children))
	for _, child := range children {
		records[child.ID] = make(map[models.Category]models.Record, len(categories))
	}
	for r := range results {
		records[r.childID][r.category] = r.record
	}

	return &Snapshot{
		Children:       children,
		Records:        records,
		Timestamp:      time.Now(),
		implicitTimers: c.cfg.ImplicitActiveTimers,
	}
}

// fetchLatest retrieves one child's latest record in one category,
// absorbing failures into an empty record. A 4xx means the endpoint or
// filter is unsupported by this upstream version; anything else is a
// transport problem. Neither fails the cycle.
func (c *Coordinator) fetchLatest(ctx context.Context, childID int, key models.Category) models.Record {
	record, err := c.client.First(ctx, string(key), childID)
	if err == nil {
		return record
	}

	if gateway.IsClientError(err) {
		metrics.CategoryFetchFailures.WithLabelValues(string(key), "client_error").Inc()
		logging.Debug().Err(err).Int("child_id", childID).Str("category", string(key)).Msg("Category not available upstream")
	} else {
		metrics.CategoryFetchFailures.WithLabelValues(string(key), "network").Inc()
		logging.Error().Err(err).Int("child_id", childID).Str("category", string(key)).Msg("Category fetch failed")
	}
	return models.Record{}
}

// publish swaps in the new snapshot and notifies subscribers.
func (c *Coordinator) publish(snapshot *Snapshot) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()

	metrics.SnapshotTimestamp.Set(float64(snapshot.Timestamp.Unix()))

	c.subMu.Lock()
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		subs = append(subs, sub)
	}
	c.subMu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
}

// Snapshot returns the latest published snapshot, or nil before the
// first successful refresh.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// TrackedIDs returns the current tracked child identifiers.
func (c *Coordinator) TrackedIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int, 0, len(c.tracked))
	for id := range c.tracked {
		ids = append(ids, id)
	}
	return ids
}

// LastError returns the outcome of the most recent refresh cycle.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastSuccess returns when the last successful refresh completed.
func (c *Coordinator) LastSuccess() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// PollInterval returns the current poll period.
func (c *Coordinator) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

// Subscribe registers a snapshot listener and returns an unsubscribe
// function. Subscribers are invoked synchronously on publication, so
// slow consumers should hand off to their own goroutine.
func (c *Coordinator) Subscribe(sub Subscriber) func() {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = sub
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// RequestRefresh schedules an out-of-band poll. Bursts of calls within
// the debounce window coalesce into a single cycle.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshChan <- struct{}{}:
	default:
	}
}

// SetPollInterval reconfigures the timer period and triggers an
// immediate refresh.
func (c *Coordinator) SetPollInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("coordinator: poll interval must be positive, got %s", interval)
	}

	c.mu.Lock()
	c.interval = interval
	c.mu.Unlock()

	select {
	case c.intervalChan <- interval:
	default:
	}

	logging.Info().Dur("interval", interval).Msg("Poll interval updated")
	return nil
}

// Start begins the polling loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopChan = make(chan struct{})
	interval := c.interval
	c.mu.Unlock()

	logging.Info().Dur("interval", interval).Msg("Starting poll loop")

	c.wg.Add(1)
	go c.pollLoop(ctx)

	return nil
}

// Stop halts the polling loop. In-flight requests complete or time out
// naturally.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Poll loop stopped")
}

// pollLoop drives the recurring refresh plus out-of-band triggers.
func (c *Coordinator) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	// Initial poll
	if err := c.Refresh(ctx); err != nil {
		logging.Warn().Err(err).Msg("Initial refresh failed")
	}

	ticker := time.NewTicker(c.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				logging.Warn().Err(err).Msg("Scheduled refresh failed")
			}
		case <-c.refreshChan:
			if !c.debounce(ctx) {
				return
			}
			if err := c.Refresh(ctx); err != nil {
				logging.Warn().Err(err).Msg("Requested refresh failed")
			}
		case interval := <-c.intervalChan:
			ticker.Reset(interval)
			if err := c.Refresh(ctx); err != nil {
				logging.Warn().Err(err).Msg("Post-reconfiguration refresh failed")
			}
		}
	}
}

// debounce waits out the coalescing window and drains any further
// refresh requests that arrived meanwhile. Returns false when the loop
// should exit instead of refreshing.
func (c *Coordinator) debounce(ctx context.Context) bool {
	timer := time.NewTimer(debounceWindow)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-c.stopChan:
		return false
	case <-timer.C:
	}

	select {
	case <-c.refreshChan:
	default:
	}
	return true
}
