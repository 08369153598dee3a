// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/pattern"
)

func testViolation(confirmed bool) violation {
	cfg := DefaultChannels()[ChannelClick]
	cfg.ViolationInterval = 0
	return violation{
		channel:   ChannelClick,
		reason:    Reason{Kind: ReasonRateCeiling, Channel: ChannelClick, Measured: 25, Threshold: 20},
		severity:  3,
		confirmed: confirmed,
		cfg:       cfg,
	}
}

// recordN applies n violations one second apart and returns the decisions.
func recordN(t *testing.T, s *subject, v violation, n int, start time.Time) []Decision {
	t.Helper()
	var out []Decision
	for i := 0; i < n; i++ {
		d, ok := s.record(v, start.Add(time.Duration(i)*time.Second))
		if !ok {
			t.Fatalf("record() #%d rejected", i+1)
		}
		out = append(out, d)
	}
	return out
}

func TestRecord_WarnThreshold(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	decisions := recordN(t, s, testViolation(false), 3, t0)

	want := []State{StateClean, StateClean, StateSuspected}
	for i, d := range decisions {
		if d.State != want[i] {
			t.Errorf("decision %d state = %s, want %s", i+1, d.State, want[i])
		}
		if d.Action.Kind != ActionWarn {
			t.Errorf("decision %d action = %s, want warn", i+1, d.Action)
		}
		if d.Counter != i+1 || d.Offenses != i+1 {
			t.Errorf("decision %d counter/offenses = %d/%d", i+1, d.Counter, d.Offenses)
		}
	}
	if len(s.history) != 3 {
		t.Errorf("history = %d records, want 3", len(s.history))
	}
}

func TestRecord_FlagRequiresConfirmation(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	decisions := recordN(t, s, testViolation(false), 6, t0)
	if got := decisions[5].State; got != StateSuspected {
		t.Fatalf("unconfirmed state at flag threshold = %s, want suspected", got)
	}

	s = newSubject(uuid.New(), t0, 50)
	decisions = recordN(t, s, testViolation(true), 6, t0)
	last := decisions[5]
	if last.State != StateFrozen {
		t.Errorf("state = %s, want frozen", last.State)
	}
	if last.Previous != StateSuspected {
		t.Errorf("previous = %s, want suspected", last.Previous)
	}
	if last.Action.Kind != ActionFreeze || last.Action.Duration != 10*time.Second {
		t.Errorf("action = %s, want freeze(10s)", last.Action)
	}
	if s.state != StateFlagged {
		t.Errorf("escalation state = %s, want flagged", s.state)
	}
	if want := t0.Add(5 * time.Second).Add(10 * time.Second); !s.frozenUntil.Equal(want) {
		t.Errorf("frozenUntil = %v, want %v", s.frozenUntil, want)
	}

	// Staying flagged does not freeze again.
	d, _ := s.record(testViolation(true), t0.Add(6*time.Second))
	if d.Action.Kind != ActionWarn {
		t.Errorf("action while flagged = %s, want warn", d.Action)
	}
}

func TestRecord_KickOnceAndReset(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	decisions := recordN(t, s, testViolation(true), 10, t0)

	kicks := 0
	for _, d := range decisions {
		if d.Action.Kind == ActionKick {
			kicks++
		}
	}
	if kicks != 1 {
		t.Fatalf("kick actions = %d, want 1", kicks)
	}
	last := decisions[9]
	if last.State != StateKicked {
		t.Errorf("state = %s, want kicked", last.State)
	}
	if last.Counter != 0 {
		t.Errorf("counter after kick = %d, want 0 with reset_on_kick", last.Counter)
	}
	if last.Offenses != 10 {
		t.Errorf("offenses = %d, want 10", last.Offenses)
	}
	if s.frozen {
		t.Error("kicked subject still frozen")
	}

	if _, ok := s.record(testViolation(true), t0.Add(time.Minute)); ok {
		t.Error("record() accepted a violation in a terminal state")
	}
}

func TestRecord_KickWithoutReset(t *testing.T) {
	v := testViolation(false)
	v.cfg.ResetOnKick = false
	s := newSubject(uuid.New(), t0, 50)
	decisions := recordN(t, s, v, 10, t0)
	if got := decisions[9].Counter; got != 10 {
		t.Errorf("counter = %d, want 10", got)
	}
	if got := decisions[9].State; got != StateKicked {
		t.Errorf("state = %s, want kicked", got)
	}
}

func TestRecord_BanOnCumulativeOffenses(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	s.offenses = 24

	d, ok := s.record(testViolation(false), t0)
	if !ok {
		t.Fatal("record() rejected")
	}
	if d.State != StateBanned || d.Action.Kind != ActionBan {
		t.Errorf("decision = %s/%s, want banned/ban", d.State, d.Action)
	}
	if d.Offenses != 25 {
		t.Errorf("offenses = %d, want 25", d.Offenses)
	}
}

func TestSubject_Cool(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	v := testViolation(false)
	for i := 0; i < 4; i++ {
		s.record(v, t0)
	}
	if s.state != StateSuspected {
		t.Fatalf("state = %s, want suspected", s.state)
	}

	from, to := s.cool(t0.Add(29 * time.Second))
	if from != to || s.counter != 4 {
		t.Errorf("cooled before the first window: %s -> %s, counter %d", from, to, s.counter)
	}

	from, to = s.cool(t0.Add(60 * time.Second))
	if s.counter != 2 {
		t.Errorf("counter = %d, want 2 after two windows", s.counter)
	}
	if from != StateSuspected || to != StateClean {
		t.Errorf("transition = %s -> %s, want suspected -> clean", from, to)
	}

	s.cool(t0.Add(10 * time.Minute))
	if s.counter != 0 || s.confirmed {
		t.Errorf("counter/confirmed = %d/%v, want 0/false", s.counter, s.confirmed)
	}
	if s.offenses != 4 {
		t.Errorf("offenses = %d, cooldown must not reduce the total", s.offenses)
	}
}

func TestSubject_CoolNeverRaises(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	s.state = StateSuspected
	s.counter = 1
	s.escalation = testViolation(false).cfg
	s.cooldownFrom = t0

	_, to := s.cool(t0)
	if to != StateSuspected {
		t.Errorf("state = %s, want unchanged suspected", to)
	}
}

func TestSubject_Unfreeze(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	s.state = StateFlagged
	s.frozen = true
	s.frozenUntil = t0.Add(10 * time.Second)

	if s.unfreeze(t0.Add(9 * time.Second)) {
		t.Error("unfreeze() before expiry = true")
	}
	if s.visibleState() != StateFrozen {
		t.Errorf("visible state = %s, want frozen", s.visibleState())
	}
	if !s.unfreeze(t0.Add(10 * time.Second)) {
		t.Error("unfreeze() at expiry = false")
	}
	if s.visibleState() != StateFlagged {
		t.Errorf("visible state = %s, want flagged", s.visibleState())
	}
	if s.unfreeze(t0.Add(11 * time.Second)) {
		t.Error("unfreeze() twice = true")
	}
}

func TestSubject_Pardon(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	recordN(t, s, testViolation(true), 6, t0)
	s.suspicion = 40

	prev := s.pardon()
	if prev != StateFrozen {
		t.Errorf("previous = %s, want frozen", prev)
	}
	if s.visibleState() != StateClean || s.counter != 0 || s.frozen || s.suspicion != 0 {
		t.Errorf("pardon left state %s counter %d frozen %v suspicion %v",
			s.visibleState(), s.counter, s.frozen, s.suspicion)
	}
	if s.offenses != 6 {
		t.Errorf("offenses = %d, want 6", s.offenses)
	}
}

func TestSubject_Debounced(t *testing.T) {
	s := newSubject(uuid.New(), t0, 50)
	v := testViolation(false)
	v.cfg.ViolationInterval = time.Second

	if s.debounced(v, t0) {
		t.Error("first violation debounced")
	}
	s.record(v, t0)
	if !s.debounced(v, t0.Add(500*time.Millisecond)) {
		t.Error("violation inside the interval not debounced")
	}
	if s.debounced(v, t0.Add(time.Second)) {
		t.Error("violation at the interval debounced")
	}

	other := v
	other.channel = ChannelChat
	if s.debounced(other, t0.Add(100*time.Millisecond)) {
		t.Error("debounce leaked across channels")
	}
}

func TestDetectViolation(t *testing.T) {
	cfg := DefaultChannels()[ChannelClick]
	cfg.HardCeiling = 12

	tests := []struct {
		name          string
		res           AnalysisResult
		wantOK        bool
		wantKind      ReasonKind
		wantSeverity  int
		wantConfirmed bool
	}{
		{
			name:   "clean",
			res:    AnalysisResult{Status: StatusComplete, Channel: ChannelClick, Rate: 8, Label: pattern.HumanLike},
			wantOK: false,
		},
		{
			name:   "insufficient data",
			res:    AnalysisResult{Status: StatusInsufficientData, Channel: ChannelClick, Rate: 40},
			wantOK: false,
		},
		{
			name:         "raw breach",
			res:          AnalysisResult{Status: StatusComplete, Channel: ChannelClick, Rate: 15, Label: pattern.HumanLike},
			wantOK:       true,
			wantKind:     ReasonRateCeiling,
			wantSeverity: 3,
		},
		{
			name:          "raw breach confirmed by pattern",
			res:           AnalysisResult{Status: StatusComplete, Channel: ChannelClick, Rate: 15, Label: pattern.PerfectTiming},
			wantOK:        true,
			wantKind:      ReasonRateCeiling,
			wantSeverity:  3,
			wantConfirmed: true,
		},
		{
			name:          "pattern only",
			res:           AnalysisResult{Status: StatusComplete, Channel: ChannelClick, Rate: 10, Label: pattern.Alternating},
			wantOK:        true,
			wantKind:      ReasonPattern,
			wantSeverity:  5,
			wantConfirmed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := detectViolation(tt.res, cfg)
			if ok != tt.wantOK {
				t.Fatalf("detectViolation() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if v.reason.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", v.reason.Kind, tt.wantKind)
			}
			if v.severity != tt.wantSeverity {
				t.Errorf("severity = %d, want %d", v.severity, tt.wantSeverity)
			}
			if v.confirmed != tt.wantConfirmed {
				t.Errorf("confirmed = %v, want %v", v.confirmed, tt.wantConfirmed)
			}
		})
	}
}
