// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package main

import (
	"io"
	"slices"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
)

// buildSinks returns the alert sinks selected by cfg. hub and natsSink may
// be nil when their transports are not running.
func buildSinks(cfg config.NotifyConfig, hub detection.Sink, natsSink detection.Sink) []detection.Sink {
	var sinks []detection.Sink
	if cfg.Log {
		sinks = append(sinks, detection.LogSink{})
	}
	if cfg.WebSocket && hub != nil {
		sinks = append(sinks, hub)
	}
	if cfg.NATS && natsSink != nil {
		sinks = append(sinks, natsSink)
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		sinks = append(sinks, detection.NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Discord.Enabled && cfg.Discord.URL != "" {
		sinks = append(sinks, detection.NewDiscordNotifier(cfg.Discord))
	}
	return sinks
}

// channelList returns the configured channels in sorted order.
func channelList(cfg detection.Config) []detection.Channel {
	channels := make([]detection.Channel, 0, len(cfg.Channels))
	for ch := range cfg.Channels {
		channels = append(channels, ch)
	}
	slices.Sort(channels)
	return channels
}

// closeQuietly closes c and logs a failure.
func closeQuietly(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logging.Error().Err(err).Str("component", name).Msg("Close failed")
	}
}
