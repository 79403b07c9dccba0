// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/buddybridge/config.yaml",
	"/etc/buddybridge/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		BabyBuddy: BabyBuddyConfig{
			Host:                 "",
			Port:                 8000,
			Path:                 "",
			APIKey:               "",
			PollInterval:         60 * time.Second,
			RequestTimeout:       10 * time.Second,
			ImplicitActiveTimers: true, // Baby Buddy < v2 omits the active flag
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8710,
			ShutdownTimeout: 10 * time.Second,
		},
		Registry: RegistryConfig{
			Path:     "/data/buddybridge/registry",
			InMemory: false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration in three layers:
//
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence: ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// BABYBUDDY_API_KEY -> babybuddy.api_key
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - BABYBUDDY_HOST -> babybuddy.host
//   - BABYBUDDY_API_KEY -> babybuddy.api_key
//   - POLL_INTERVAL -> babybuddy.poll_interval
//   - HTTP_PORT -> server.port
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Baby Buddy connection
		"babybuddy_host":                   "babybuddy.host",
		"babybuddy_port":                   "babybuddy.port",
		"babybuddy_path":                   "babybuddy.path",
		"babybuddy_api_key":                "babybuddy.api_key",
		"babybuddy_poll_interval":          "babybuddy.poll_interval",
		"babybuddy_request_timeout":        "babybuddy.request_timeout",
		"babybuddy_implicit_active_timers": "babybuddy.implicit_active_timers",
		// Legacy aliases
		"poll_interval": "babybuddy.poll_interval",

		// HTTP server
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Registry
		"registry_path":      "registry.path",
		"registry_in_memory": "registry.in_memory",

		// Metrics
		"metrics_enabled": "metrics.enabled",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them.
	// This prevents random environment variables from polluting config.
	return ""
}
