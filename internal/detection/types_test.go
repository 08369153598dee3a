// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/pattern"
)

func TestReason_String(t *testing.T) {
	tests := []struct {
		name   string
		reason Reason
		want   string
	}{
		{
			name:   "rate",
			reason: Reason{Kind: ReasonRateCeiling, Channel: ChannelClick, Measured: 15, Threshold: 12},
			want:   "click rate 15.00/s exceeds ceiling 12.00/s",
		},
		{
			name:   "value",
			reason: Reason{Kind: ReasonValueCeiling, Channel: ChannelReach, Measured: 4.25, Threshold: 3.5},
			want:   "reach value 4.25 exceeds ceiling 3.50",
		},
		{
			name:   "pattern",
			reason: Reason{Kind: ReasonPattern, Channel: ChannelClick, Measured: 0.5, Label: pattern.PerfectTiming},
			want:   "click timing classified as perfect_timing (stddev 0.50ms)",
		},
		{
			name:   "unknown kind",
			reason: Reason{Channel: ChannelChat},
			want:   "chat anomaly",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reason.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestState_Text(t *testing.T) {
	for s := StateClean; s <= StateBanned; s++ {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", s, err)
		}
		var got State
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if got != s {
			t.Errorf("round trip %s = %s", s, got)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("exiled")); err == nil {
		t.Error("UnmarshalText(exiled) error = nil")
	}
	if got := State(42).String(); got != "state(42)" {
		t.Errorf("String() = %q", got)
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{State: StateFrozen})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m["state"] != "frozen" {
		t.Errorf("state = %v, want frozen", m["state"])
	}
}

func TestState_Terminal(t *testing.T) {
	terminal := map[State]bool{
		StateClean:     false,
		StateSuspected: false,
		StateFlagged:   false,
		StateFrozen:    false,
		StateKicked:    true,
		StateBanned:    true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestRejectError(t *testing.T) {
	err := error(&RejectError{Reason: RejectNonFinite, Detail: "value NaN"})
	if !errors.Is(err, ErrInvalidSample) {
		t.Error("RejectError does not unwrap to ErrInvalidSample")
	}
	var rej *RejectError
	if !errors.As(err, &rej) || rej.Reason != RejectNonFinite {
		t.Errorf("errors.As() = %v", rej)
	}
	if got := err.Error(); got != "invalid sample: non_finite: value NaN" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAction_String(t *testing.T) {
	if got := (Action{Kind: ActionFreeze, Duration: 10 * time.Second}).String(); got != "freeze(10s)" {
		t.Errorf("String() = %q, want freeze(10s)", got)
	}
	if got := (Action{Kind: ActionKick}).String(); got != "kick" {
		t.Errorf("String() = %q, want kick", got)
	}
}

func TestNewAlert(t *testing.T) {
	tests := []struct {
		name  string
		d     Decision
		title string
	}{
		{"ban", Decision{Action: Action{Kind: ActionBan}, State: StateBanned}, "Subject banned"},
		{"kick", Decision{Action: Action{Kind: ActionKick}, State: StateKicked}, "Subject kicked"},
		{"freeze", Decision{Action: Action{Kind: ActionFreeze}, State: StateFrozen}, "Subject flagged and frozen"},
		{"flag", Decision{Action: Action{Kind: ActionWarn}, State: StateFlagged, Previous: StateSuspected}, "Subject flagged"},
		{"warn", Decision{Channel: ChannelChat, Action: Action{Kind: ActionWarn}, State: StateSuspected}, "Suspicious chat activity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.d.Suspicion = 35
			a := NewAlert(tt.d)
			if a.Title != tt.title {
				t.Errorf("Title = %q, want %q", a.Title, tt.title)
			}
			if a.ID == "" {
				t.Error("ID is empty")
			}
			if a.Trust != 65 {
				t.Errorf("Trust = %v, want 65", a.Trust)
			}
		})
	}
}
