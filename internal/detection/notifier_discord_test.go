// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

func TestDiscordNotifier_Send(t *testing.T) {
	var (
		mu       sync.Mutex
		received discordWebhookPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewDiscordNotifier(DiscordConfig{NotifierConfig: NotifierConfig{URL: server.URL, Enabled: true}})
	alert := testAlert()
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(received.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(received.Embeds))
	}
	embed := received.Embeds[0]
	if embed.Title != alert.Title {
		t.Errorf("title = %q, want %q", embed.Title, alert.Title)
	}
	if embed.Description != alert.Message {
		t.Errorf("description = %q, want %q", embed.Description, alert.Message)
	}
	if embed.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", embed.Timestamp)
	}
	if embed.Color != 0xF1C40F {
		t.Errorf("color = %#x, want yellow for severity 3", embed.Color)
	}

	fields := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	want := map[string]string{
		"Subject":  alert.Subject.String(),
		"Channel":  "click",
		"Severity": "3/10",
		"Action":   "warn",
		"State":    "suspected",
		"Trust":    "80",
		"Pattern":  "perfect_timing",
	}
	for name, value := range want {
		if fields[name] != value {
			t.Errorf("field %s = %q, want %q", name, fields[name], value)
		}
	}
}

func TestSeverityColor(t *testing.T) {
	tests := []struct {
		severity int
		want     int
	}{
		{10, 0xFF0000},
		{8, 0xFF0000},
		{7, 0xFFA500},
		{5, 0xFFA500},
		{4, 0xF1C40F},
		{3, 0xF1C40F},
		{2, 0x3498DB},
		{1, 0x3498DB},
	}
	for _, tt := range tests {
		if got := severityColor(tt.severity); got != tt.want {
			t.Errorf("severityColor(%d) = %#x, want %#x", tt.severity, got, tt.want)
		}
	}
}

func TestDiscordNotifier_Name(t *testing.T) {
	var s Sink = NewDiscordNotifier(DiscordConfig{})
	if s.Name() != "discord" {
		t.Errorf("Name() = %q, want discord", s.Name())
	}
}
