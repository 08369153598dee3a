// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vigil/config.yaml",
	"/etc/vigil/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return load(path)
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
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

// findConfigFile returns the first existing config file, or "".
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

// sliceConfigPaths are parsed from comma-separated strings when set through
// the environment.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"vigil_tick_interval":      "detection.tick_interval",
	"vigil_workers":            "detection.workers",
	"vigil_history_size":       "detection.history_size",
	"vigil_late_analysis_ttl":  "detection.late_analysis_ttl",
	"vigil_ledger_timeout":     "detection.ledger_timeout",
	"vigil_dispatch_queue":     "detection.dispatch.queue_size",
	"vigil_dispatch_workers":   "detection.dispatch.workers",
	"vigil_dispatch_timeout":   "detection.dispatch.send_timeout",
	"vigil_trust_decay":        "detection.trust.decay_per_tick",
	"vigil_trust_raw_weight":   "detection.trust.raw_weight",
	"vigil_trust_points":       "detection.trust.points_per_unit",
	"vigil_pattern_weight":     "detection.trust.pattern_weight",
	"vigil_corroboration_rate": "detection.trust.corroboration_factor",

	"store_path":        "store.path",
	"store_in_memory":   "store.in_memory",
	"store_sync_writes": "store.sync_writes",
	"store_history_ttl": "store.history_ttl",
	"store_gc_interval": "store.gc_interval",

	"nats_url":             "ingest.url",
	"nats_jetstream":       "ingest.jetstream",
	"nats_durable_name":    "ingest.durable_name",
	"nats_queue_group":     "ingest.queue_group",
	"nats_subscribers":     "ingest.subscribers_count",
	"nats_max_reconnects":  "ingest.max_reconnects",
	"nats_samples_prefix":  "ingest.samples_topic_prefix",
	"nats_sessions_topic":  "ingest.sessions_topic",
	"nats_alerts_topic":    "ingest.alerts_topic",
	"nats_actions_topic":   "ingest.actions_topic",
	"nats_poison_topic":    "ingest.poison_queue_topic",
	"nats_retry_count":     "ingest.retry_max_retries",
	"nats_retry_interval":  "ingest.retry_initial_interval",
	"nats_throttle":        "ingest.throttle_per_second",
	"nats_embedded":        "broker.enabled",
	"nats_host":            "broker.host",
	"nats_port":            "broker.port",
	"nats_store_dir":       "broker.store_dir",
	"nats_embedded_stream": "broker.jetstream",

	"http_host":           "api.host",
	"http_port":           "api.port",
	"cors_origins":        "api.cors_origins",
	"rate_limit_requests": "api.rate_limit_requests",
	"rate_limit_window":   "api.rate_limit_window",
	"disable_rate_limit":  "api.rate_limit_disabled",

	"auth_mode":  "auth.mode",
	"jwt_secret": "auth.jwt_secret",
	"jwt_ttl":    "auth.token_ttl",
	"jwt_issuer": "auth.issuer",

	"notify_log":          "notify.log",
	"notify_websocket":    "notify.websocket",
	"notify_nats":         "notify.nats",
	"webhook_url":         "notify.webhook.url",
	"webhook_enabled":     "notify.webhook.enabled",
	"discord_webhook_url": "notify.discord.url",
	"discord_enabled":     "notify.discord.enabled",

	"supervisor_shutdown_timeout": "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable to its koanf path. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
