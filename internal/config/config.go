// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"time"

	"github.com/tomtom215/vigil/internal/api"
	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/ingest"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/store"
	"github.com/tomtom215/vigil/internal/supervisor"
)

// Config is the complete process configuration.
type Config struct {
	Logging    logging.Config        `koanf:"logging"`
	Detection  detection.Config      `koanf:"detection"`
	Store      store.Config          `koanf:"store"`
	Ingest     ingest.Config         `koanf:"ingest"`
	Broker     ingest.ServerConfig   `koanf:"broker"`
	API        api.Config            `koanf:"api"`
	Auth       auth.Config           `koanf:"auth"`
	Notify     NotifyConfig          `koanf:"notify"`
	Supervisor supervisor.TreeConfig `koanf:"supervisor"`
}

// NotifyConfig selects the alert sinks.
type NotifyConfig struct {
	// Log writes every alert to the structured log.
	Log bool `koanf:"log"`
	// WebSocket pushes alerts to connected staff clients.
	WebSocket bool `koanf:"websocket"`
	// NATS publishes alerts to the ingest alerts topic.
	NATS bool `koanf:"nats"`

	Webhook detection.WebhookConfig `koanf:"webhook"`
	Discord detection.DiscordConfig `koanf:"discord"`
}

func defaultNotifier() detection.NotifierConfig {
	return detection.NotifierConfig{
		Timeout:         5 * time.Second,
		RateLimit:       1,
		Burst:           5,
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
}

// defaultConfig returns the built-in defaults, the first configuration layer.
func defaultConfig() *Config {
	logCfg := logging.DefaultConfig()
	logCfg.Output = nil

	return &Config{
		Logging:   logCfg,
		Detection: detection.DefaultConfig(),
		Store:     store.DefaultConfig(),
		Ingest:    ingest.DefaultConfig(),
		Broker:    ingest.DefaultServerConfig(),
		API:       api.DefaultConfig(),
		Auth:      auth.DefaultConfig(),
		Notify: NotifyConfig{
			Log:       true,
			WebSocket: true,
			NATS:      true,
			Webhook:   detection.WebhookConfig{NotifierConfig: defaultNotifier()},
			Discord:   detection.DiscordConfig{NotifierConfig: defaultNotifier()},
		},
		Supervisor: supervisor.DefaultTreeConfig(),
	}
}

// Default returns the built-in defaults without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}
