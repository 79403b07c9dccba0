// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateBabyBuddy(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateBabyBuddy validates the upstream connection parameters.
func (c *Config) validateBabyBuddy() error {
	if c.BabyBuddy.Host == "" {
		return fmt.Errorf("BABYBUDDY_HOST is required")
	}

	if !strings.HasPrefix(c.BabyBuddy.Host, "http://") && !strings.HasPrefix(c.BabyBuddy.Host, "https://") {
		return fmt.Errorf("BABYBUDDY_HOST must start with http:// or https://, got %q", c.BabyBuddy.Host)
	}

	if c.BabyBuddy.APIKey == "" {
		return fmt.Errorf("BABYBUDDY_API_KEY is required")
	}

	if c.BabyBuddy.Port < 0 || c.BabyBuddy.Port > 65535 {
		return fmt.Errorf("BABYBUDDY_PORT must be between 0 and 65535, got %d", c.BabyBuddy.Port)
	}

	if c.BabyBuddy.Path != "" && !strings.HasPrefix(c.BabyBuddy.Path, "/") {
		return fmt.Errorf("BABYBUDDY_PATH must start with /, got %q", c.BabyBuddy.Path)
	}

	if c.BabyBuddy.PollInterval <= 0 {
		return fmt.Errorf("BABYBUDDY_POLL_INTERVAL must be positive, got %s", c.BabyBuddy.PollInterval)
	}

	if c.BabyBuddy.RequestTimeout <= 0 {
		return fmt.Errorf("BABYBUDDY_REQUEST_TIMEOUT must be positive, got %s", c.BabyBuddy.RequestTimeout)
	}

	return nil
}

// validateServer validates the HTTP server configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

// validateLogging validates the logging configuration.
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace/debug/info/warn/error/fatal, got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}

	return nil
}
