// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

// subject is the engine-owned state of one tracked player. Windows live in
// the engine's window store; everything else is guarded by mu.
type subject struct {
	id        SubjectID
	createdAt time.Time

	mu sync.Mutex

	// removed is set by Deregister. In-flight analyses and pending tasks
	// for a removed subject are discarded.
	removed bool

	// dirty holds channels that received samples since their last analysis.
	dirty map[Channel]struct{}
	// pending holds, per value channel, the largest value ingested since
	// the channel was last judged. Late samples inserted behind newer ones
	// are covered too.
	pending map[Channel]float64
	results map[Channel]AnalysisResult

	suspicion float64

	counter  int
	offenses int
	state    State // escalation state; never StateFrozen
	// confirmed is set once a classifier-confirmed violation is part of the
	// current escalation. It clears when the counter returns to zero.
	confirmed bool
	// escalation is the config of the channel that recorded the latest
	// violation; its cooldown and thresholds drive decay.
	escalation ChannelConfig

	lastViolation time.Time
	cooldownFrom  time.Time
	lastByChannel map[Channel]time.Time

	frozen      bool
	frozenUntil time.Time

	history     []ViolationRecord
	historySize int
}

func newSubject(id SubjectID, now time.Time, historySize int) *subject {
	return &subject{
		id:            id,
		createdAt:     now,
		dirty:         make(map[Channel]struct{}),
		pending:       make(map[Channel]float64),
		results:       make(map[Channel]AnalysisResult),
		lastByChannel: make(map[Channel]time.Time),
		historySize:   historySize,
	}
}

// visibleState is the state reported to callers (must hold mu).
func (s *subject) visibleState() State {
	if s.frozen && !s.state.Terminal() {
		return StateFrozen
	}
	return s.state
}

// appendHistory adds a record, dropping the oldest beyond historySize (must hold mu).
func (s *subject) appendHistory(rec ViolationRecord) {
	if len(s.history) >= s.historySize {
		n := copy(s.history, s.history[len(s.history)-s.historySize+1:])
		s.history = s.history[:n]
	}
	s.history = append(s.history, rec)
}

// historyCopy returns the records oldest first (must hold mu).
func (s *subject) historyCopy() []ViolationRecord {
	out := make([]ViolationRecord, len(s.history))
	copy(out, s.history)
	return out
}

// snapshot builds the public view (must hold mu).
func (s *subject) snapshot() Snapshot {
	snap := Snapshot{
		Subject:   s.id,
		State:     s.visibleState(),
		Counter:   s.counter,
		Offenses:  s.offenses,
		Suspicion: s.suspicion,
		Trust:     100 - s.suspicion,
		Frozen:    s.frozen,
		CreatedAt: s.createdAt,
		Channels:  maps.Clone(s.results),
	}
	if s.frozen {
		until := s.frozenUntil
		snap.FrozenUntil = &until
	}
	if !s.lastViolation.IsZero() {
		last := s.lastViolation
		snap.LastViolation = &last
	}
	return snap
}

// notePending raises the unjudged peak of a value channel (must hold mu).
func (s *subject) notePending(ch Channel, value float64) {
	if cur, ok := s.pending[ch]; !ok || value > cur {
		s.pending[ch] = value
	}
}

// takeDirty returns and clears the dirty channels with their unjudged peaks,
// -Inf where none is pending (must hold mu).
func (s *subject) takeDirty() ([]Channel, []float64) {
	if len(s.dirty) == 0 {
		return nil, nil
	}
	channels := make([]Channel, 0, len(s.dirty))
	for ch := range s.dirty {
		channels = append(channels, ch)
	}
	slices.Sort(channels)
	clear(s.dirty)

	peaks := make([]float64, len(channels))
	for i, ch := range channels {
		peak, ok := s.pending[ch]
		if !ok {
			peak = math.Inf(-1)
		}
		peaks[i] = peak
		delete(s.pending, ch)
	}
	return channels, peaks
}
