// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for Buddybridge.
type Config struct {
	BabyBuddy BabyBuddyConfig `koanf:"babybuddy"`
	Server    ServerConfig    `koanf:"server"`
	Registry  RegistryConfig  `koanf:"registry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// BabyBuddyConfig holds connection parameters for the upstream Baby Buddy
// instance and the polling behavior of the coordinator.
type BabyBuddyConfig struct {
	Host   string `koanf:"host"`    // Base URL, e.g. http://babybuddy.local
	Port   int    `koanf:"port"`    // API port (default: 8000)
	Path   string `koanf:"path"`    // Optional path prefix, may be empty
	APIKey string `koanf:"api_key"` // Opaque bearer token from user settings

	// PollInterval is the coordinator refresh period (default: 60s).
	PollInterval time.Duration `koanf:"poll_interval"`

	// RequestTimeout bounds every individual API request (default: 10s).
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// ImplicitActiveTimers controls how timer records without an "active"
	// field are interpreted. Baby Buddy versions before v2 omit the field
	// and only return active timers from a child-filtered query, so any
	// returned record is implicitly active. Set to false for servers that
	// report the flag explicitly.
	ImplicitActiveTimers bool `koanf:"implicit_active_timers"`
}

// ServerConfig holds the HTTP API server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// RegistryConfig holds the child device registry storage configuration.
type RegistryConfig struct {
	// Path is the BadgerDB directory for persisted device records.
	Path string `koanf:"path"`

	// InMemory runs the registry without disk persistence (testing).
	InMemory bool `koanf:"in_memory"`

	// RestorePath, when set, names a backup file to load into the
	// registry at startup before polling begins.
	RestorePath string `koanf:"restore_path"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// BaseURL returns the upstream base URL including port and path prefix,
// without a trailing slash. Matches the original host:port+path layout.
func (c *BabyBuddyConfig) BaseURL() string {
	url := strings.TrimSuffix(c.Host, "/")
	if c.Port != 0 {
		url = fmt.Sprintf("%s:%d", url, c.Port)
	}
	return url + c.Path
}
