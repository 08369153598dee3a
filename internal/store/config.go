// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package store

import (
	"fmt"
	"time"
)

// Config holds the BadgerDB settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	SyncWrites  bool `koanf:"sync_writes"`
	Compression bool `koanf:"compression"`

	// HistoryTTL expires violation records. Zero keeps them forever.
	HistoryTTL time.Duration `koanf:"history_ttl" validate:"gte=0"`

	GCInterval time.Duration `koanf:"gc_interval" validate:"gte=0"`
	GCRatio    float64       `koanf:"gc_ratio" validate:"gt=0,lt=1"`

	CloseTimeout time.Duration `koanf:"close_timeout" validate:"gte=0"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Path:         "/data/vigil",
		SyncWrites:   true,
		Compression:  true,
		HistoryTTL:   90 * 24 * time.Hour,
		GCInterval:   10 * time.Minute,
		GCRatio:      0.5,
		CloseTimeout: 30 * time.Second,
	}
}

// Validate checks the settings that struct tags cannot express.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return &ConfigError{Field: "path", Message: "required unless in_memory is set"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "gc_ratio", Message: fmt.Sprintf("%v must be in (0, 1)", c.GCRatio)}
	}
	if c.HistoryTTL < 0 {
		return &ConfigError{Field: "history_ttl", Message: "must not be negative"}
	}
	if c.GCInterval < 0 {
		return &ConfigError{Field: "gc_interval", Message: "must not be negative"}
	}
	return nil
}

// ConfigError describes an invalid store setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("store config: %s: %s", e.Field, e.Message)
}
