// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/window"
)

// AlertDispatcher accepts alerts without blocking.
// Satisfied by *Dispatcher.
type AlertDispatcher interface {
	Dispatch(alert *Alert) bool
}

// departed is what remains of a deregistered subject for late queries.
type departed struct {
	snapshot Snapshot
	history  []ViolationRecord
}

// Engine owns every tracked subject and advances detection once per tick.
type Engine struct {
	cfg     Config
	windows *window.Store[SubjectID, Channel]
	tasks   *taskQueue
	gone    *expirable.LRU[SubjectID, departed]

	ledger     Ledger
	handler    ActionHandler
	dispatcher AlertDispatcher
	now        func() time.Time

	mu       sync.RWMutex
	subjects map[SubjectID]*subject

	// tickMu serializes ticks; lastTick anchors ScheduleRecheck delays.
	tickMu   sync.Mutex
	lastTick time.Time

	ledgerCh   chan ledgerWrite
	ledgerDone chan struct{}
	closeMu    sync.RWMutex
	closed     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLedger persists offenses, history and bans.
func WithLedger(l Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithActionHandler sets the host callback for violation decisions.
func WithActionHandler(h ActionHandler) Option {
	return func(e *Engine) { e.handler = h }
}

// WithDispatcher sets where alerts are fanned out.
func WithDispatcher(d AlertDispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithClock overrides the wall clock used by RunWithContext and Register.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine. cfg must have passed Validate.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		tasks:      newTaskQueue(),
		subjects:   make(map[SubjectID]*subject),
		now:        time.Now,
		ledgerCh:   make(chan ledgerWrite, max(cfg.LedgerQueue, 1)),
		ledgerDone: make(chan struct{}),
	}
	e.windows = window.NewStore[SubjectID, Channel](func(ch Channel) window.Limits {
		return e.cfg.Channels[ch].Limits()
	})
	if cfg.LateAnalysisTTL > 0 {
		e.gone = expirable.NewLRU[SubjectID, departed](max(cfg.LateAnalysisSize, 1), nil, cfg.LateAnalysisTTL)
	}
	for _, opt := range opts {
		opt(e)
	}

	go e.processLedgerWrites()

	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Register starts tracking a subject, typically when the player joins.
// The cumulative offense total and ban status are restored from the ledger,
// so a banned subject is reported as StateBanned immediately and the host
// can refuse the join. Registering a tracked subject is a no-op that returns
// its current state.
func (e *Engine) Register(ctx context.Context, id SubjectID) (State, error) {
	var offenses int
	var banned bool
	if e.ledger != nil {
		lctx, cancel := context.WithTimeout(ctx, e.cfg.LedgerTimeout)
		defer cancel()

		var err error
		if offenses, err = e.ledger.Offenses(lctx, id); err != nil {
			return StateClean, fmt.Errorf("failed to load offenses: %w", err)
		}
		if banned, err = e.ledger.Banned(lctx, id); err != nil {
			return StateClean, fmt.Errorf("failed to load ban status: %w", err)
		}
	}

	e.mu.Lock()
	sub, ok := e.subjects[id]
	if !ok {
		sub = newSubject(id, e.now(), e.cfg.HistorySize)
		e.subjects[id] = sub
		metrics.SubjectsTracked.Set(float64(len(e.subjects)))
	}
	e.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.offenses = max(sub.offenses, offenses)
	if banned {
		sub.state = StateBanned
		sub.frozen = false
	}

	logging.Debug().
		Str("subject", id.String()).
		Int("offenses", sub.offenses).
		Bool("banned", banned).
		Msg("subject registered")

	return sub.visibleState(), nil
}

// Deregister stops tracking a subject and frees its windows. Its final
// snapshot and history stay queryable for LateAnalysisTTL. Pending scheduled
// tasks for the subject are dropped immediately.
func (e *Engine) Deregister(id SubjectID) error {
	e.mu.Lock()
	sub, ok := e.subjects[id]
	if ok {
		delete(e.subjects, id)
		e.windows.Remove(id)
		metrics.SubjectsTracked.Set(float64(len(e.subjects)))
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubject, id)
	}

	sub.mu.Lock()
	sub.removed = true
	snap := sub.snapshot()
	snap.Departed = true
	history := sub.historyCopy()
	sub.mu.Unlock()

	dropped := e.tasks.cancelSubject(sub)

	if e.gone != nil {
		e.gone.Add(id, departed{snapshot: snap, history: history})
	}

	logging.Debug().
		Str("subject", id.String()).
		Int("dropped_tasks", dropped).
		Msg("subject deregistered")
	return nil
}

// Ingest validates a sample and appends it to the subject's channel window.
// The subject is created on its first sample. Ingest never scores and never
// blocks on I/O. Rejected samples leave all state untouched and return a
// *RejectError wrapping ErrInvalidSample.
func (e *Engine) Ingest(id SubjectID, channel Channel, value float64, t time.Time) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return e.reject(RejectNonFinite, fmt.Sprintf("value %v", value))
	}
	cfg, ok := e.cfg.Channels[channel]
	if !ok {
		return e.reject(RejectUnknownChannel, string(channel))
	}

	e.mu.RLock()
	sub, ok := e.subjects[id]
	if !ok {
		e.mu.RUnlock()
		e.mu.Lock()
		if sub, ok = e.subjects[id]; !ok {
			sub = newSubject(id, t, e.cfg.HistorySize)
			e.subjects[id] = sub
			metrics.SubjectsTracked.Set(float64(len(e.subjects)))
		}
		e.mu.Unlock()
		e.mu.RLock()
		if e.subjects[id] != sub {
			e.mu.RUnlock()
			return fmt.Errorf("%w: %s", ErrUnknownSubject, id)
		}
	}
	defer e.mu.RUnlock()

	if err := e.windows.Push(id, channel, window.Sample{Time: t, Value: value}); err != nil {
		if errors.Is(err, window.ErrOutOfOrder) {
			return e.reject(RejectOutOfOrder, t.Format(time.RFC3339Nano))
		}
		return err
	}

	sub.mu.Lock()
	sub.dirty[channel] = struct{}{}
	if cfg.Mode != ModeInterval {
		sub.notePending(channel, value)
	}
	sub.mu.Unlock()

	metrics.SamplesIngested.WithLabelValues(string(channel)).Inc()
	return nil
}

func (e *Engine) reject(reason RejectReason, detail string) error {
	metrics.RecordRejection(string(reason))
	return &RejectError{Reason: reason, Detail: detail}
}

// Subjects returns the tracked subject IDs in a stable order.
func (e *Engine) Subjects() []SubjectID {
	e.mu.RLock()
	ids := make([]SubjectID, 0, len(e.subjects))
	for id := range e.subjects {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	slices.SortFunc(ids, func(a, b SubjectID) int {
		return slices.Compare(a[:], b[:])
	})
	return ids
}

func (e *Engine) lookup(id SubjectID) *subject {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.subjects[id]
}

// Snapshot returns the current view of a subject, or the final view of a
// recently departed one.
func (e *Engine) Snapshot(id SubjectID) (Snapshot, error) {
	if sub := e.lookup(id); sub != nil {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.snapshot(), nil
	}
	if e.gone != nil {
		if d, ok := e.gone.Get(id); ok {
			return d.snapshot, nil
		}
	}
	return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownSubject, id)
}

// History returns the in-memory violation history of a subject, oldest first.
func (e *Engine) History(id SubjectID) ([]ViolationRecord, error) {
	if sub := e.lookup(id); sub != nil {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.historyCopy(), nil
	}
	if e.gone != nil {
		if d, ok := e.gone.Get(id); ok {
			return slices.Clone(d.history), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSubject, id)
}

// Pardon resets a subject's session escalation, lifts any freeze and
// removes a ban. The cumulative offense total is kept.
func (e *Engine) Pardon(ctx context.Context, id SubjectID, p Pardon) (Snapshot, error) {
	sub := e.lookup(id)
	if sub == nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownSubject, id)
	}
	if p.Time.IsZero() {
		p.Time = e.now()
	}

	sub.mu.Lock()
	prev := sub.pardon()
	snap := sub.snapshot()
	sub.mu.Unlock()

	metrics.RecordTransition(prev.String(), snap.State.String())
	logging.Ctx(logging.ContextWithSubject(ctx, id)).Info().
		Str("by", p.By).
		Str("previous_state", prev.String()).
		Msg("subject pardoned")

	e.persist("pardon", id, func(ctx context.Context, l Ledger) error {
		if err := l.RecordPardon(ctx, id, p); err != nil {
			return err
		}
		if prev == StateBanned {
			return l.SetBanned(ctx, id, false, p.Time)
		}
		return nil
	})
	return snap, nil
}

// ScheduleRecheck forces a fresh analysis of a channel after delay, measured
// from the engine's last tick. Rescheduling the same subject and channel
// moves the pending recheck. Deregistration cancels it.
func (e *Engine) ScheduleRecheck(id SubjectID, channel Channel, delay time.Duration) error {
	if _, ok := e.cfg.Channels[channel]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	sub := e.lookup(id)
	if sub == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSubject, id)
	}

	e.tickMu.Lock()
	base := e.lastTick
	e.tickMu.Unlock()

	e.tasks.schedule(&task{
		kind:    taskRecheck,
		subject: sub,
		channel: channel,
		due:     base.Add(delay),
		key:     fmt.Sprintf("%s:%s:%s", taskRecheck, id, channel),
	})
	return nil
}

// RunWithContext drives Tick every TickInterval until the context is canceled.
// It is restart-safe for suture supervision; Close is separate.
func (e *Engine) RunWithContext(ctx context.Context) error {
	logging.Info().Dur("tick_interval", e.cfg.TickInterval).Msg("detection engine started")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("detection engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.TickContext(ctx, e.now())
		}
	}
}

// Close flushes pending ledger writes and stops the ledger writer.
// Safe to call more than once.
func (e *Engine) Close() error {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return nil
	}
	e.closed = true
	close(e.ledgerCh)
	e.closeMu.Unlock()

	<-e.ledgerDone
	return nil
}
