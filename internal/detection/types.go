// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/pattern"
)

// SubjectID identifies a tracked player.
type SubjectID = uuid.UUID

// Channel identifies one monitored behavioral signal.
type Channel string

const (
	ChannelClick    Channel = "click"
	ChannelChat     Channel = "chat"
	ChannelMining   Channel = "mining"
	ChannelMovement Channel = "movement"
	ChannelReach    Channel = "reach"
)

var (
	// ErrInvalidSample is returned by Ingest for samples that were dropped.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrUnknownSubject is returned for operations on subjects the engine does not hold.
	ErrUnknownSubject = errors.New("unknown subject")

	// ErrUnknownChannel is returned for channels that are not configured.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrSinkUnavailable marks alerts that could not be handed to a sink.
	ErrSinkUnavailable = errors.New("sink unavailable")
)

// RejectReason explains why a sample was dropped at ingestion.
type RejectReason string

const (
	RejectNonFinite      RejectReason = "non_finite"
	RejectOutOfOrder     RejectReason = "out_of_order"
	RejectUnknownChannel RejectReason = "unknown_channel"
)

// RejectError is returned by Ingest. It always unwraps to ErrInvalidSample.
type RejectError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid sample: %s", e.Reason)
	}
	return fmt.Sprintf("invalid sample: %s: %s", e.Reason, e.Detail)
}

func (e *RejectError) Unwrap() error {
	return ErrInvalidSample
}

// State is the escalation state of a subject.
type State int

const (
	StateClean State = iota
	StateSuspected
	StateFlagged
	StateFrozen
	StateKicked
	StateBanned
)

var stateNames = [...]string{"clean", "suspected", "flagged", "frozen", "kicked", "banned"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateKicked || s == StateBanned
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// ActionKind is the enforcement the engine suggests to the host.
type ActionKind string

const (
	ActionWarn   ActionKind = "warn"
	ActionFreeze ActionKind = "freeze"
	ActionKick   ActionKind = "kick"
	ActionBan    ActionKind = "ban"
)

// Action is a suggested enforcement. Duration is set for freezes only.
type Action struct {
	Kind     ActionKind    `json:"kind"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (a Action) String() string {
	if a.Kind == ActionFreeze {
		return fmt.Sprintf("freeze(%s)", a.Duration)
	}
	return string(a.Kind)
}

// ReasonKind classifies why a violation was recorded.
type ReasonKind string

const (
	// ReasonRateCeiling is an event rate above the channel's hard ceiling.
	ReasonRateCeiling ReasonKind = "rate_ceiling"
	// ReasonValueCeiling is a sample value above the channel's hard ceiling.
	ReasonValueCeiling ReasonKind = "value_ceiling"
	// ReasonPattern is a suspicious classifier label.
	ReasonPattern ReasonKind = "pattern"
)

// Reason is the structured cause of a violation. Hosts render their own
// messages from the fields; String gives a default English rendering.
type Reason struct {
	Kind      ReasonKind    `json:"kind"`
	Channel   Channel       `json:"channel"`
	Measured  float64       `json:"measured"`
	Threshold float64       `json:"threshold,omitempty"`
	Label     pattern.Label `json:"label,omitempty"`
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonRateCeiling:
		return fmt.Sprintf("%s rate %.2f/s exceeds ceiling %.2f/s", r.Channel, r.Measured, r.Threshold)
	case ReasonValueCeiling:
		return fmt.Sprintf("%s value %.2f exceeds ceiling %.2f", r.Channel, r.Measured, r.Threshold)
	case ReasonPattern:
		return fmt.Sprintf("%s timing classified as %s (stddev %.2fms)", r.Channel, r.Label, r.Measured)
	default:
		return fmt.Sprintf("%s anomaly", r.Channel)
	}
}

// Overshoot returns the relative excess of Measured over Threshold.
func (r Reason) Overshoot() float64 {
	if r.Threshold <= 0 || r.Measured <= r.Threshold {
		return 0
	}
	return (r.Measured - r.Threshold) / r.Threshold
}

// AnalysisStatus distinguishes a full analysis from a window too small to judge.
type AnalysisStatus string

const (
	StatusInsufficientData AnalysisStatus = "insufficient_data"
	StatusComplete         AnalysisStatus = "complete"
)

// AnalysisResult holds the features of one channel window. It is derived
// state and never persisted.
//
// For interval channels the statistics describe inter-sample intervals in
// milliseconds and Rate is events per second in the trailing rate window.
// For value channels the statistics describe sample values and Peak is the
// largest value considered for the ceiling check. Trend is the Pearson
// correlation of the analyzed series with elapsed time: near 0 for a steady
// series, towards ±1 for drift.
type AnalysisResult struct {
	Status    AnalysisStatus `json:"status"`
	Channel   Channel        `json:"channel"`
	Count     int            `json:"count"`
	Mean      float64        `json:"mean"`
	Median    float64        `json:"median"`
	Variance  float64        `json:"variance"`
	StdDev    float64        `json:"stddev"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	Skewness  float64        `json:"skewness"`
	Kurtosis  float64        `json:"kurtosis"`
	Entropy   float64        `json:"entropy"`
	CV        float64        `json:"cv"`
	Rate      float64        `json:"rate,omitempty"`
	Peak      float64        `json:"peak,omitempty"`
	Trend     float64        `json:"trend"`
	Label     pattern.Label  `json:"label,omitempty"`
	Suspicion float64        `json:"suspicion"`
	Newest    time.Time      `json:"newest,omitempty"`
}

// ViolationRecord is one entry of a subject's violation history.
type ViolationRecord struct {
	Time     time.Time `json:"time"`
	Channel  Channel   `json:"channel"`
	Reason   Reason    `json:"reason"`
	Severity int       `json:"severity"`
	Action   Action    `json:"action"`
}

// Decision is handed to the host for every confirmed violation.
type Decision struct {
	Subject   SubjectID `json:"subject"`
	Channel   Channel   `json:"channel"`
	Severity  int       `json:"severity"`
	Reason    Reason    `json:"reason"`
	Action    Action    `json:"action"`
	State     State     `json:"state"`
	Previous  State     `json:"previous"`
	Counter   int       `json:"counter"`
	Offenses  int       `json:"offenses"`
	Suspicion float64   `json:"suspicion"`
	Time      time.Time `json:"time"`
}

// ActionHandler receives violation decisions. The host enacts the action.
// Errors and panics are logged; the engine state has already advanced.
type ActionHandler interface {
	OnViolation(ctx context.Context, d Decision) error
}

// ActionHandlerFunc adapts a function to ActionHandler.
type ActionHandlerFunc func(ctx context.Context, d Decision) error

// OnViolation implements ActionHandler.
func (f ActionHandlerFunc) OnViolation(ctx context.Context, d Decision) error {
	return f(ctx, d)
}

// Snapshot is a point-in-time view of a subject.
type Snapshot struct {
	Subject       SubjectID                  `json:"subject"`
	State         State                      `json:"state"`
	Counter       int                        `json:"counter"`
	Offenses      int                        `json:"offenses"`
	Suspicion     float64                    `json:"suspicion"`
	Trust         float64                    `json:"trust"`
	Frozen        bool                       `json:"frozen"`
	FrozenUntil   *time.Time                 `json:"frozen_until,omitempty"`
	LastViolation *time.Time                 `json:"last_violation,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
	Channels      map[Channel]AnalysisResult `json:"channels,omitempty"`
	Departed      bool                       `json:"departed"`
}

// Alert is the sink-facing form of a decision.
type Alert struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subject   SubjectID `json:"subject"`
	Channel   Channel   `json:"channel"`
	Reason    Reason    `json:"reason"`
	Message   string    `json:"message"`
	Severity  int       `json:"severity"`
	Action    Action    `json:"action"`
	State     State     `json:"state"`
	Trust     float64   `json:"trust"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAlert builds the alert for a decision.
func NewAlert(d Decision) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		Title:     alertTitle(d),
		Subject:   d.Subject,
		Channel:   d.Channel,
		Reason:    d.Reason,
		Message:   d.Reason.String(),
		Severity:  d.Severity,
		Action:    d.Action,
		State:     d.State,
		Trust:     100 - d.Suspicion,
		Timestamp: d.Time,
	}
}

func alertTitle(d Decision) string {
	switch d.Action.Kind {
	case ActionBan:
		return "Subject banned"
	case ActionKick:
		return "Subject kicked"
	case ActionFreeze:
		return "Subject flagged and frozen"
	}
	if d.State == StateFlagged && d.Previous != StateFlagged {
		return "Subject flagged"
	}
	return fmt.Sprintf("Suspicious %s activity", d.Channel)
}

// Sink receives alerts from the Dispatcher.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Send delivers one alert. It is called at most once per alert.
	Send(ctx context.Context, alert *Alert) error
}
