// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

/*
Package config provides centralized configuration management for Buddybridge.

Configuration is loaded in three layers with koanf, later layers overriding
earlier ones:

 1. Built-in defaults
 2. Optional YAML config file (config.yaml, or CONFIG_PATH)
 3. Environment variables

# Environment Variables

Baby Buddy connection (BabyBuddyConfig):
  - BABYBUDDY_HOST: Base URL of the Baby Buddy instance (required)
  - BABYBUDDY_PORT: API port (default: 8000)
  - BABYBUDDY_PATH: Optional path prefix
  - BABYBUDDY_API_KEY: API token from the user settings page (required)
  - BABYBUDDY_POLL_INTERVAL: Coordinator refresh period (default: 60s)
  - BABYBUDDY_REQUEST_TIMEOUT: Per-request timeout (default: 10s)
  - BABYBUDDY_IMPLICIT_ACTIVE_TIMERS: Treat timers without an "active"
    field as active (default: true, for Baby Buddy < v2)

HTTP server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 8710)
  - HTTP_SHUTDOWN_TIMEOUT: Graceful shutdown window (default: 10s)

Registry (RegistryConfig):
  - REGISTRY_PATH: BadgerDB directory for child device records
  - REGISTRY_IN_MEMORY: Run without disk persistence (default: false)
  - REGISTRY_RESTORE_PATH: Backup file to load into the registry at startup

Logging / metrics:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - METRICS_ENABLED (default: true)

# Thread Safety

The Config struct is immutable after Load() returns, making it safe for
concurrent access from multiple goroutines without synchronization.
*/
package config
