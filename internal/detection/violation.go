// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import "time"

// violation is one confirmed breach detected during a tick.
type violation struct {
	channel  Channel
	reason   Reason
	severity int
	// confirmed marks a suspicious classifier label behind the violation.
	confirmed bool
	cfg       ChannelConfig
}

// detectViolation turns a fresh analysis into a violation. A ceiling breach
// takes precedence for reason and severity; a suspicious label on the same
// window still confirms it.
func detectViolation(res AnalysisResult, cfg ChannelConfig) (violation, bool) {
	raw, breached := res.ceilingBreach(cfg)
	pat, suspicious := res.patternViolation()

	switch {
	case breached:
		return violation{
			channel:   res.Channel,
			reason:    raw,
			severity:  rawSeverity(raw),
			confirmed: suspicious,
			cfg:       cfg,
		}, true
	case suspicious:
		return violation{
			channel:   res.Channel,
			reason:    pat,
			severity:  patternSeverity(pat.Label),
			confirmed: true,
			cfg:       cfg,
		}, true
	default:
		return violation{}, false
	}
}

// debounced reports whether a violation on channel falls inside the
// channel's ViolationInterval (must hold mu).
func (s *subject) debounced(v violation, now time.Time) bool {
	last, ok := s.lastByChannel[v.channel]
	return ok && v.cfg.ViolationInterval > 0 && now.Sub(last) < v.cfg.ViolationInterval
}

// stateFor maps a counter to the non-terminal state it warrants.
func stateFor(counter int, confirmed bool, cfg ChannelConfig) State {
	switch {
	case counter >= cfg.FlagThreshold && confirmed:
		return StateFlagged
	case counter >= cfg.WarnThreshold:
		return StateSuspected
	default:
		return StateClean
	}
}

// record applies a violation to the state machine (must hold mu). It returns
// false without changes when the subject is already in a terminal state.
func (s *subject) record(v violation, now time.Time) (Decision, bool) {
	if s.state.Terminal() {
		return Decision{}, false
	}

	prev := s.visibleState()
	cfg := v.cfg

	s.counter++
	s.offenses++
	s.lastViolation = now
	s.cooldownFrom = now
	s.lastByChannel[v.channel] = now
	s.escalation = cfg
	if v.confirmed {
		s.confirmed = true
	}

	action := Action{Kind: ActionWarn}
	switch {
	case s.offenses >= cfg.BanThreshold:
		s.state = StateBanned
		s.frozen = false
		action = Action{Kind: ActionBan}
	case s.counter >= cfg.KickThreshold:
		s.state = StateKicked
		s.frozen = false
		action = Action{Kind: ActionKick}
		if cfg.ResetOnKick {
			s.counter = 0
			s.confirmed = false
		}
	default:
		next := max(s.state, stateFor(s.counter, s.confirmed, cfg))
		if next == StateFlagged && s.state != StateFlagged && cfg.AutoFreeze {
			s.frozen = true
			s.frozenUntil = now.Add(cfg.FreezeDuration)
			action = Action{Kind: ActionFreeze, Duration: cfg.FreezeDuration}
		}
		s.state = next
	}

	s.appendHistory(ViolationRecord{
		Time:     now,
		Channel:  v.channel,
		Reason:   v.reason,
		Severity: v.severity,
		Action:   action,
	})

	return Decision{
		Subject:   s.id,
		Channel:   v.channel,
		Severity:  v.severity,
		Reason:    v.reason,
		Action:    action,
		State:     s.visibleState(),
		Previous:  prev,
		Counter:   s.counter,
		Offenses:  s.offenses,
		Suspicion: s.suspicion,
		Time:      now,
	}, true
}

// cool steps the counter down once per elapsed cooldown window and lowers the
// state to match (must hold mu). It returns the visible states before and after.
func (s *subject) cool(now time.Time) (from, to State) {
	from = s.visibleState()
	if s.counter == 0 || s.state.Terminal() {
		return from, from
	}

	cd := s.escalation.Cooldown
	if cd <= 0 {
		return from, from
	}
	for s.counter > 0 && now.Sub(s.cooldownFrom) >= cd {
		s.counter--
		s.cooldownFrom = s.cooldownFrom.Add(cd)
	}
	if s.counter == 0 {
		s.confirmed = false
	}
	if next := stateFor(s.counter, s.confirmed, s.escalation); next < s.state {
		s.state = next
	}
	return from, s.visibleState()
}

// unfreeze lifts an expired freeze (must hold mu). It reports whether the
// subject was frozen.
func (s *subject) unfreeze(now time.Time) bool {
	if !s.frozen || now.Before(s.frozenUntil) {
		return false
	}
	s.frozen = false
	s.frozenUntil = time.Time{}
	return true
}

// pardon clears the session escalation but keeps the cumulative offense
// total (must hold mu).
func (s *subject) pardon() State {
	prev := s.visibleState()
	s.counter = 0
	s.confirmed = false
	s.state = StateClean
	s.frozen = false
	s.frozenUntil = time.Time{}
	s.suspicion = 0
	clear(s.lastByChannel)
	return prev
}
