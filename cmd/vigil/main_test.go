// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/detection"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubSink struct{ name string }

func (s stubSink) Name() string                               { return s.name }
func (stubSink) Send(context.Context, *detection.Alert) error { return nil }

func sinkNames(sinks []detection.Sink) []string {
	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	return names
}

func TestBuildSinks(t *testing.T) {
	hub := stubSink{name: "websocket"}
	nats := stubSink{name: "nats"}

	tests := []struct {
		name   string
		notify func(*config.NotifyConfig)
		hub    detection.Sink
		nats   detection.Sink
		want   string
	}{
		{
			name:   "defaults",
			notify: func(*config.NotifyConfig) {},
			hub:    hub,
			nats:   nats,
			want:   "log,websocket,nats",
		},
		{
			name:   "nats transport missing",
			notify: func(*config.NotifyConfig) {},
			hub:    hub,
			want:   "log,websocket",
		},
		{
			name: "log disabled",
			notify: func(n *config.NotifyConfig) {
				n.Log = false
				n.NATS = false
			},
			hub:  hub,
			nats: nats,
			want: "websocket",
		},
		{
			name: "webhook enabled without url",
			notify: func(n *config.NotifyConfig) {
				n.Webhook.Enabled = true
			},
			want: "log",
		},
		{
			name: "webhook and discord",
			notify: func(n *config.NotifyConfig) {
				n.WebSocket = false
				n.Webhook.Enabled = true
				n.Webhook.URL = "http://127.0.0.1:9/hook"
				n.Discord.Enabled = true
				n.Discord.URL = "http://127.0.0.1:9/discord"
			},
			hub:  hub,
			nats: nats,
			want: "log,nats,webhook,discord",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notify := config.Default().Notify
			tt.notify(&notify)
			got := strings.Join(sinkNames(buildSinks(notify, tt.hub, tt.nats)), ",")
			if got != tt.want {
				t.Errorf("sinks = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChannelList(t *testing.T) {
	cfg := detection.DefaultConfig()
	channels := channelList(cfg)
	if len(channels) != len(cfg.Channels) {
		t.Fatalf("got %d channels, want %d", len(channels), len(cfg.Channels))
	}
	for i := 1; i < len(channels); i++ {
		if channels[i-1] >= channels[i] {
			t.Errorf("channels not sorted: %v", channels)
		}
	}
}

func TestIssueToken(t *testing.T) {
	cfg := auth.DefaultConfig()
	cfg.JWTSecret = testSecret

	var buf bytes.Buffer
	if err := issueToken(&buf, cfg, "alice", auth.RoleModerator); err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	manager, err := auth.NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	claims, err := manager.ValidateToken(strings.TrimSpace(buf.String()))
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "alice" || claims.Role != auth.RoleModerator {
		t.Errorf("claims = %s/%s, want alice/moderator", claims.Username, claims.Role)
	}
}

func TestIssueTokenErrors(t *testing.T) {
	valid := auth.DefaultConfig()
	valid.JWTSecret = testSecret

	noAuth := valid
	noAuth.Mode = auth.ModeNone

	tests := []struct {
		name string
		cfg  auth.Config
		user string
		role auth.Role
	}{
		{"missing user", valid, "", auth.RoleViewer},
		{"unknown role", valid, "alice", auth.Role("root")},
		{"auth disabled", noAuth, "alice", auth.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := issueToken(&buf, tt.cfg, tt.user, tt.role); err == nil {
				t.Error("expected error")
			}
			if buf.Len() != 0 {
				t.Errorf("unexpected output %q", buf.String())
			}
		})
	}
}

func TestRootCommandStructure(t *testing.T) {
	cmd := newRootCmd()
	if cmd.Use != "vigil" {
		t.Errorf("Use = %q, want vigil", cmd.Use)
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("missing persistent --config flag")
	}

	have := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		have[sub.Name()] = true
	}
	for _, want := range []string{"serve", "token", "check-config"} {
		if !have[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestCheckConfigCommand(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9191")
	configPath = ""
	t.Cleanup(func() { configPath = "" })

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"check-config"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("check-config: %v (%s)", err, out.String())
	}
	if !strings.Contains(out.String(), "configuration valid") || !strings.Contains(out.String(), ":9191") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestCheckConfigCommandInvalid(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_MODE", "jwt")
	configPath = ""
	t.Cleanup(func() { configPath = "" })

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"check-config"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected validation error without a JWT secret")
	}
}

func TestCheckConfigMissingFile(t *testing.T) {
	configPath = ""
	t.Cleanup(func() { configPath = "" })

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", t.TempDir() + "/missing.yaml", "check-config"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
