// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

/*
registry.go - Durable device registry

Tracks one device record per adopted child in BadgerDB so the set of
tracked children survives restarts. The coordinator bootstraps its
tracked-ID set from here before the first poll and reconciles the
registry when children appear in or vanish from the upstream roster.
*/

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/buddybridge/buddybridge/internal/config"
	"github.com/buddybridge/buddybridge/internal/logging"
)

// Key prefix for device records in BadgerDB
const deviceKeyPrefix = "device:"

// ErrNotFound indicates no device record exists for the requested child.
var ErrNotFound = errors.New("registry: device not found")

// DeviceRecord is the persisted bridge-side identity for one tracked
// child.
type DeviceRecord struct {
	ChildID      int       `json:"child_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	DashboardURL string    `json:"dashboard_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Registry is a BadgerDB-backed device store.
type Registry struct {
	db *badger.DB
}

// Open creates (or reopens) the registry at the configured path. With
// InMemory set the store lives only for the process lifetime, which is
// what tests and ephemeral deployments want.
func Open(cfg *config.RegistryConfig) (*Registry, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("registry: open BadgerDB: %w", err)
	}

	logging.Debug().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Device registry opened")

	return &Registry{db: db}, nil
}

// Close releases the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Put stores or replaces the device record for a child.
func (r *Registry) Put(ctx context.Context, record DeviceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("registry: marshal device record: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(deviceKeyPrefix + strconv.Itoa(record.ChildID))
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("registry: set device record: %w", err)
		}
		return nil
	})
}

// Get retrieves the device record for a child.
func (r *Registry) Get(ctx context.Context, childID int) (*DeviceRecord, error) {
	var record DeviceRecord

	err := r.db.View(func(txn *badger.Txn) error {
		key := []byte(deviceKeyPrefix + strconv.Itoa(childID))
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("registry: get device record: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Remove deletes the device record for a child. Removing an absent
// record is not an error.
func (r *Registry) Remove(ctx context.Context, childID int) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(deviceKeyPrefix + strconv.Itoa(childID))
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("registry: delete device record: %w", err)
		}
		return nil
	})
}

// List returns all device records ordered by child ID.
func (r *Registry) List(ctx context.Context) ([]DeviceRecord, error) {
	var records []DeviceRecord

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(deviceKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record DeviceRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("registry: decode device record: %w", err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ChildID < records[j].ChildID
	})
	return records, nil
}

// ChildIDs returns the sorted set of tracked child IDs.
func (r *Registry) ChildIDs(ctx context.Context) ([]int, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(records))
	for i, rec := range records {
		ids[i] = rec.ChildID
	}
	return ids, nil
}
