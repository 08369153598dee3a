// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ingest

import (
	"time"

	"github.com/tomtom215/vigil/internal/detection"
)

// Config holds NATS and router settings.
type Config struct {
	URL string `koanf:"url" validate:"required"`

	// JetStream enables durable consumption. Core NATS is used otherwise.
	JetStream   bool   `koanf:"jetstream"`
	DurableName string `koanf:"durable_name"`

	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout" validate:"gt=0"`
	CloseTimeout     time.Duration `koanf:"close_timeout" validate:"gt=0"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" validate:"gte=0"`

	SamplesTopicPrefix string `koanf:"samples_topic_prefix" validate:"required"`
	SessionsTopic      string `koanf:"sessions_topic" validate:"required"`
	AlertsTopic        string `koanf:"alerts_topic" validate:"required"`
	PoisonQueueTopic   string `koanf:"poison_queue_topic"`

	// ActionsTopic receives every violation decision. Empty disables it.
	ActionsTopic string `koanf:"actions_topic"`

	RetryMaxRetries      int           `koanf:"retry_max_retries" validate:"gte=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval" validate:"gte=0"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval" validate:"gte=0"`
	RetryMultiplier      float64       `koanf:"retry_multiplier" validate:"gte=1"`

	// ThrottlePerSecond caps handled messages per second. 0 disables it.
	ThrottlePerSecond int64 `koanf:"throttle_per_second" validate:"gte=0"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		URL:                  "nats://127.0.0.1:4222",
		QueueGroup:           "vigil",
		DurableName:          "vigil",
		SubscribersCount:     2,
		AckWaitTimeout:       30 * time.Second,
		CloseTimeout:         30 * time.Second,
		MaxReconnects:        -1,
		ReconnectWait:        2 * time.Second,
		SamplesTopicPrefix:   "vigil.samples",
		SessionsTopic:        "vigil.sessions",
		AlertsTopic:          "vigil.alerts",
		ActionsTopic:         "vigil.actions",
		PoisonQueueTopic:     "vigil.dlq",
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		RetryMultiplier:      2.0,
	}
}

// SamplesTopic returns the topic samples of a channel are published on.
func (c Config) SamplesTopic(ch detection.Channel) string {
	return c.SamplesTopicPrefix + "." + string(ch)
}
