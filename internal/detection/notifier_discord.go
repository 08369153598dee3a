// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DiscordConfig configures the Discord notifier.
type DiscordConfig struct {
	NotifierConfig `koanf:",squash,flatten"`
}

// DiscordNotifier posts alerts to a Discord channel webhook as embeds.
type DiscordNotifier struct {
	*httpNotifier
}

// NewDiscordNotifier creates a Discord notifier.
func NewDiscordNotifier(cfg DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{httpNotifier: newHTTPNotifier("discord", cfg.NotifierConfig, nil)}
}

// Name implements Sink.
func (n *DiscordNotifier) Name() string {
	return "discord"
}

// Send implements Sink.
func (n *DiscordNotifier) Send(ctx context.Context, alert *Alert) error {
	return n.post(ctx, discordWebhookPayload{
		Embeds: []discordEmbed{buildEmbed(alert)},
	})
}

func buildEmbed(alert *Alert) discordEmbed {
	fields := []discordEmbedField{
		{Name: "Subject", Value: alert.Subject.String(), Inline: false},
		{Name: "Channel", Value: string(alert.Channel), Inline: true},
		{Name: "Severity", Value: strconv.Itoa(alert.Severity) + "/10", Inline: true},
		{Name: "Action", Value: alert.Action.String(), Inline: true},
		{Name: "State", Value: alert.State.String(), Inline: true},
		{Name: "Trust", Value: fmt.Sprintf("%.0f", alert.Trust), Inline: true},
	}
	if alert.Reason.Label != "" {
		fields = append(fields, discordEmbedField{Name: "Pattern", Value: alert.Reason.Label.String(), Inline: true})
	}

	return discordEmbed{
		Title:       alert.Title,
		Description: alert.Message,
		Color:       severityColor(alert.Severity),
		Timestamp:   alert.Timestamp.UTC().Format(time.RFC3339),
		Fields:      fields,
		Footer:      discordEmbedFooter{Text: "Vigil Anti-Cheat"},
	}
}

// severityColor returns the embed color for a 1..10 severity.
func severityColor(severity int) int {
	switch {
	case severity >= 8:
		return 0xFF0000 // Red
	case severity >= 5:
		return 0xFFA500 // Orange
	case severity >= 3:
		return 0xF1C40F // Yellow
	default:
		return 0x3498DB // Blue
	}
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}
