// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// memLedger implements Ledger in memory for testing
type memLedger struct {
	mu         sync.Mutex
	offenses   map[SubjectID]int
	banned     map[SubjectID]bool
	violations map[SubjectID][]ViolationRecord
	pardons    map[SubjectID][]Pardon
	readErr    error
}

func newMemLedger() *memLedger {
	return &memLedger{
		offenses:   make(map[SubjectID]int),
		banned:     make(map[SubjectID]bool),
		violations: make(map[SubjectID][]ViolationRecord),
		pardons:    make(map[SubjectID][]Pardon),
	}
}

func (m *memLedger) Offenses(_ context.Context, id SubjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.offenses[id], nil
}

func (m *memLedger) Banned(_ context.Context, id SubjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banned[id], nil
}

func (m *memLedger) RecordViolation(_ context.Context, id SubjectID, rec ViolationRecord, offenses int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[id] = append(m.violations[id], rec)
	m.offenses[id] = offenses
	return nil
}

func (m *memLedger) SetBanned(_ context.Context, id SubjectID, banned bool, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned[id] = banned
	return nil
}

func (m *memLedger) RecordPardon(_ context.Context, id SubjectID, p Pardon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pardons[id] = append(m.pardons[id], p)
	return nil
}

// captureHandler records every decision handed to the host.
type captureHandler struct {
	mu        sync.Mutex
	decisions []Decision
	panicOn   ActionKind
}

func (h *captureHandler) OnViolation(_ context.Context, d Decision) error {
	h.mu.Lock()
	h.decisions = append(h.decisions, d)
	h.mu.Unlock()
	if h.panicOn != "" && d.Action.Kind == h.panicOn {
		panic("host crashed")
	}
	return nil
}

func (h *captureHandler) all() []Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Decision, len(h.decisions))
	copy(out, h.decisions)
	return out
}

// captureDispatcher records alerts instead of delivering them.
type captureDispatcher struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (d *captureDispatcher) Dispatch(a *Alert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
	return true
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(cfg, opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// strictClickConfig returns a config whose click channel breaches above 12/s
// and records a violation on every tick.
func strictClickConfig() Config {
	cfg := DefaultConfig()
	click := cfg.Channels[ChannelClick]
	click.HardCeiling = 12
	click.ViolationInterval = 0
	cfg.Channels[ChannelClick] = click
	return cfg
}

// clicks ingests n evenly spaced clicks at hz starting at start.
func clicks(t *testing.T, e *Engine, id SubjectID, start time.Time, n int, hz int) {
	t.Helper()
	step := time.Second / time.Duration(hz)
	for i := 0; i < n; i++ {
		if err := e.Ingest(id, ChannelClick, 1, start.Add(time.Duration(i)*step)); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}
}

func TestEngine_RateCeilingEndToEnd(t *testing.T) {
	handler := &captureHandler{}
	dispatcher := &captureDispatcher{}
	ledger := newMemLedger()
	e := newTestEngine(t, strictClickConfig(),
		WithActionHandler(handler), WithDispatcher(dispatcher), WithLedger(ledger))

	id := uuid.New()
	if _, err := e.Register(context.Background(), id); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	clicks(t, e, id, t0, 15, 15)
	e.Tick(t0.Add(time.Second))

	decisions := handler.all()
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	d := decisions[0]
	if d.Subject != id || d.Channel != ChannelClick {
		t.Errorf("decision for %s/%s", d.Subject, d.Channel)
	}
	if !strings.Contains(d.Reason.String(), "15.00") {
		t.Errorf("reason %q does not mention the measured rate", d.Reason)
	}
	if d.Severity != 3 {
		t.Errorf("severity = %d, want 3", d.Severity)
	}
	if d.Action.Kind != ActionWarn || d.State != StateClean {
		t.Errorf("action/state = %s/%s, want warn/clean", d.Action, d.State)
	}

	snap, err := e.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Counter != 1 || snap.Offenses != 1 {
		t.Errorf("counter/offenses = %d/%d, want 1/1", snap.Counter, snap.Offenses)
	}
	if snap.Suspicion <= 0 || snap.Trust >= 100 {
		t.Errorf("suspicion = %v, trust = %v", snap.Suspicion, snap.Trust)
	}
	if got := snap.Channels[ChannelClick].Rate; got != 15 {
		t.Errorf("stored rate = %v, want 15", got)
	}

	dispatcher.mu.Lock()
	alerts := len(dispatcher.alerts)
	dispatcher.mu.Unlock()
	if alerts != 1 {
		t.Errorf("alerts dispatched = %d, want 1", alerts)
	}

	_ = e.Close()
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if len(ledger.violations[id]) != 1 || ledger.offenses[id] != 1 {
		t.Errorf("ledger = %d records, %d offenses", len(ledger.violations[id]), ledger.offenses[id])
	}
}

func TestEngine_NoSamplesNoDecision(t *testing.T) {
	handler := &captureHandler{}
	e := newTestEngine(t, strictClickConfig(), WithActionHandler(handler))

	id := uuid.New()
	clicks(t, e, id, t0, 15, 15)
	e.Tick(t0.Add(time.Second))
	e.Tick(t0.Add(2 * time.Second))
	e.Tick(t0.Add(3 * time.Second))

	if got := len(handler.all()); got != 1 {
		t.Errorf("decisions = %d, want 1 without new samples", got)
	}
}

func TestEngine_KickOnceWithReset(t *testing.T) {
	handler := &captureHandler{}
	e := newTestEngine(t, strictClickConfig(), WithActionHandler(handler))
	id := uuid.New()

	for i := 0; i < 12; i++ {
		start := t0.Add(time.Duration(i) * time.Second)
		clicks(t, e, id, start, 15, 15)
		e.Tick(start.Add(time.Second))
	}

	decisions := handler.all()
	if len(decisions) != 10 {
		t.Fatalf("decisions = %d, want 10 (none after the kick)", len(decisions))
	}

	var kicks, freezes int
	for _, d := range decisions {
		switch d.Action.Kind {
		case ActionKick:
			kicks++
		case ActionFreeze:
			freezes++
		}
	}
	if kicks != 1 {
		t.Errorf("kicks = %d, want 1", kicks)
	}
	if freezes != 1 {
		t.Errorf("freezes = %d, want 1", freezes)
	}
	if decisions[5].Action.Kind != ActionFreeze {
		t.Errorf("decision 6 action = %s, want freeze", decisions[5].Action)
	}

	snap, _ := e.Snapshot(id)
	if snap.State != StateKicked {
		t.Errorf("state = %s, want kicked", snap.State)
	}
	if snap.Counter != 0 {
		t.Errorf("counter = %d, want 0 after kick reset", snap.Counter)
	}
	if snap.Offenses != 10 {
		t.Errorf("offenses = %d, want 10", snap.Offenses)
	}
}

func TestEngine_FreezeLiftedAfterExpiry(t *testing.T) {
	cfg := strictClickConfig()
	click := cfg.Channels[ChannelClick]
	click.WarnThreshold = 1
	click.FlagThreshold = 1
	cfg.Channels[ChannelClick] = click

	handler := &captureHandler{}
	e := newTestEngine(t, cfg, WithActionHandler(handler))
	id := uuid.New()

	clicks(t, e, id, t0, 15, 15)
	now := t0.Add(time.Second)
	e.Tick(now)

	decisions := handler.all()
	if len(decisions) != 1 || decisions[0].Action.Kind != ActionFreeze {
		t.Fatalf("decisions = %+v, want one freeze", decisions)
	}

	snap, _ := e.Snapshot(id)
	if snap.State != StateFrozen || !snap.Frozen {
		t.Fatalf("state = %s, want frozen", snap.State)
	}
	if snap.FrozenUntil == nil || !snap.FrozenUntil.Equal(now.Add(click.FreezeDuration)) {
		t.Errorf("frozen until = %v, want %v", snap.FrozenUntil, now.Add(click.FreezeDuration))
	}

	e.Tick(now.Add(click.FreezeDuration - time.Millisecond))
	if snap, _ = e.Snapshot(id); snap.State != StateFrozen {
		t.Errorf("state before expiry = %s, want frozen", snap.State)
	}

	e.Tick(now.Add(click.FreezeDuration))
	snap, _ = e.Snapshot(id)
	if snap.State != StateFlagged || snap.Frozen || snap.FrozenUntil != nil {
		t.Errorf("state after expiry = %s frozen=%v, want flagged", snap.State, snap.Frozen)
	}
}

func TestEngine_Deregister(t *testing.T) {
	handler := &captureHandler{}
	e := newTestEngine(t, strictClickConfig(), WithActionHandler(handler))
	id := uuid.New()

	clicks(t, e, id, t0, 15, 15)
	e.Tick(t0.Add(time.Second))

	if err := e.Deregister(id); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if got := e.Subjects(); len(got) != 0 {
		t.Errorf("Subjects() = %v, want empty", got)
	}
	if res := e.Analyze(id, ChannelClick); res.Count != 0 {
		t.Errorf("windows survived deregistration: count %d", res.Count)
	}

	snap, err := e.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot() of departed subject error = %v", err)
	}
	if !snap.Departed || snap.Offenses != 1 {
		t.Errorf("departed snapshot = %+v", snap)
	}
	history, err := e.History(id)
	if err != nil || len(history) != 1 {
		t.Errorf("History() = %d records, err %v", len(history), err)
	}

	if err := e.Deregister(id); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("second Deregister() error = %v, want ErrUnknownSubject", err)
	}

	// Ticks after departure must not resurrect or decide anything.
	e.Tick(t0.Add(2 * time.Second))
	if got := len(handler.all()); got != 1 {
		t.Errorf("decisions = %d, want 1", got)
	}
}

func TestEngine_DeregisterCancelsTasks(t *testing.T) {
	cfg := strictClickConfig()
	click := cfg.Channels[ChannelClick]
	click.WarnThreshold = 1
	click.FlagThreshold = 1
	cfg.Channels[ChannelClick] = click
	e := newTestEngine(t, cfg)
	id := uuid.New()

	clicks(t, e, id, t0, 15, 15)
	e.Tick(t0.Add(time.Second))
	if err := e.ScheduleRecheck(id, ChannelClick, time.Second); err != nil {
		t.Fatalf("ScheduleRecheck() error = %v", err)
	}
	if e.tasks.len() != 2 {
		t.Fatalf("pending tasks = %d, want unfreeze and recheck", e.tasks.len())
	}
	if err := e.Deregister(id); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if e.tasks.len() != 0 {
		t.Errorf("pending tasks after Deregister = %d, want 0", e.tasks.len())
	}

	e.Tick(t0.Add(time.Minute))
	if e.tasks.len() != 0 {
		t.Errorf("pending tasks = %d, want 0", e.tasks.len())
	}
	snap, _ := e.Snapshot(id)
	if !snap.Departed || snap.State != StateFrozen {
		t.Errorf("departed snapshot changed after deregistration: %s", snap.State)
	}
}

func TestEngine_IngestRejections(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	id := uuid.New()

	if err := e.Ingest(id, ChannelReach, 3, t0.Add(time.Second)); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	tests := []struct {
		name    string
		channel Channel
		value   float64
		at      time.Time
		reason  RejectReason
	}{
		{"nan", ChannelReach, math.NaN(), t0.Add(2 * time.Second), RejectNonFinite},
		{"positive infinity", ChannelReach, math.Inf(1), t0.Add(2 * time.Second), RejectNonFinite},
		{"negative infinity", ChannelReach, math.Inf(-1), t0.Add(2 * time.Second), RejectNonFinite},
		{"unknown channel", Channel("teleport"), 1, t0.Add(2 * time.Second), RejectUnknownChannel},
		{"older than window", ChannelReach, 3, t0, RejectOutOfOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Ingest(id, tt.channel, tt.value, tt.at)
			if !errors.Is(err, ErrInvalidSample) {
				t.Fatalf("Ingest() error = %v, want ErrInvalidSample", err)
			}
			var rej *RejectError
			if !errors.As(err, &rej) || rej.Reason != tt.reason {
				t.Errorf("reject reason = %v, want %s", rej, tt.reason)
			}
		})
	}

	if res := e.Analyze(id, ChannelReach); res.Count != 1 {
		t.Errorf("window count = %d, rejected samples must leave state untouched", res.Count)
	}
}

func TestEngine_IngestCreatesSubject(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	a, b := uuid.New(), uuid.New()

	for _, id := range []SubjectID{b, a} {
		if err := e.Ingest(id, ChannelChat, 1, t0); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}

	got := e.Subjects()
	if len(got) != 2 {
		t.Fatalf("Subjects() = %d, want 2", len(got))
	}
	if strings.Compare(got[0].String(), got[1].String()) > 0 {
		t.Errorf("Subjects() not sorted: %v", got)
	}
}

func TestEngine_RegisterRestoresLedger(t *testing.T) {
	ledger := newMemLedger()
	banned, repeat := uuid.New(), uuid.New()
	ledger.banned[banned] = true
	ledger.offenses[banned] = 30
	ledger.offenses[repeat] = 24

	handler := &captureHandler{}
	e := newTestEngine(t, strictClickConfig(), WithLedger(ledger), WithActionHandler(handler))

	state, err := e.Register(context.Background(), banned)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if state != StateBanned {
		t.Errorf("banned subject state = %s, want banned", state)
	}

	state, err = e.Register(context.Background(), repeat)
	if err != nil || state != StateClean {
		t.Fatalf("Register() = %s, %v", state, err)
	}

	clicks(t, e, repeat, t0, 15, 15)
	e.Tick(t0.Add(time.Second))

	decisions := handler.all()
	if len(decisions) != 1 || decisions[0].Action.Kind != ActionBan {
		t.Fatalf("decisions = %+v, want one ban", decisions)
	}
	if decisions[0].Offenses != 25 {
		t.Errorf("offenses = %d, want 25", decisions[0].Offenses)
	}

	_ = e.Close()
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if !ledger.banned[repeat] {
		t.Error("ban was not persisted")
	}
	if ledger.offenses[repeat] != 25 {
		t.Errorf("persisted offenses = %d, want 25", ledger.offenses[repeat])
	}
}

func TestEngine_RegisterLedgerError(t *testing.T) {
	ledger := newMemLedger()
	ledger.readErr = errors.New("disk gone")
	e := newTestEngine(t, DefaultConfig(), WithLedger(ledger))

	if _, err := e.Register(context.Background(), uuid.New()); err == nil {
		t.Error("Register() error = nil, want ledger failure")
	}
	if got := len(e.Subjects()); got != 0 {
		t.Errorf("Subjects() = %d, failed registration must not track", got)
	}
}

func TestEngine_RegisterIsIdempotent(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	id := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := e.Register(context.Background(), id); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	if got := len(e.Subjects()); got != 1 {
		t.Errorf("Subjects() = %d, want 1", got)
	}
}

func TestEngine_HandlerPanicDoesNotStopTick(t *testing.T) {
	handler := &captureHandler{panicOn: ActionWarn}
	e := newTestEngine(t, strictClickConfig(), WithActionHandler(handler))
	a, b := uuid.New(), uuid.New()

	clicks(t, e, a, t0, 15, 15)
	clicks(t, e, b, t0, 15, 15)
	e.Tick(t0.Add(time.Second))

	if got := len(handler.all()); got != 2 {
		t.Errorf("handler calls = %d, want 2 despite panics", got)
	}
	for _, id := range []SubjectID{a, b} {
		if snap, _ := e.Snapshot(id); snap.Counter != 1 {
			t.Errorf("subject %s counter = %d, want 1", id, snap.Counter)
		}
	}
}

func TestEngine_Pardon(t *testing.T) {
	ledger := newMemLedger()
	e := newTestEngine(t, strictClickConfig(), WithLedger(ledger))
	id := uuid.New()

	for i := 0; i < 4; i++ {
		start := t0.Add(time.Duration(i) * time.Second)
		clicks(t, e, id, start, 15, 15)
		e.Tick(start.Add(time.Second))
	}
	if snap, _ := e.Snapshot(id); snap.State != StateSuspected {
		t.Fatalf("state = %s, want suspected", snap.State)
	}

	snap, err := e.Pardon(context.Background(), id, Pardon{By: "moderator", Note: "false positive"})
	if err != nil {
		t.Fatalf("Pardon() error = %v", err)
	}
	if snap.State != StateClean || snap.Counter != 0 || snap.Suspicion != 0 {
		t.Errorf("pardoned snapshot = %+v", snap)
	}
	if snap.Offenses != 4 {
		t.Errorf("offenses = %d, want 4", snap.Offenses)
	}

	if _, err := e.Pardon(context.Background(), uuid.New(), Pardon{}); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("Pardon(unknown) error = %v, want ErrUnknownSubject", err)
	}

	_ = e.Close()
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if len(ledger.pardons[id]) != 1 || ledger.pardons[id][0].By != "moderator" {
		t.Errorf("pardons = %+v", ledger.pardons[id])
	}
	if ledger.pardons[id][0].Time.IsZero() {
		t.Error("pardon time not set")
	}
}

func TestEngine_ScheduleRecheck(t *testing.T) {
	handler := &captureHandler{}
	e := newTestEngine(t, strictClickConfig(), WithActionHandler(handler))
	id := uuid.New()

	clicks(t, e, id, t0, 15, 15)
	now := t0.Add(time.Second)
	e.Tick(now)

	if err := e.ScheduleRecheck(id, ChannelClick, 100*time.Millisecond); err != nil {
		t.Fatalf("ScheduleRecheck() error = %v", err)
	}
	e.Tick(now.Add(50 * time.Millisecond))
	if got := len(handler.all()); got != 1 {
		t.Fatalf("decisions before recheck = %d, want 1", got)
	}

	e.Tick(now.Add(100 * time.Millisecond))
	if got := len(handler.all()); got != 2 {
		t.Errorf("decisions after recheck = %d, want 2", got)
	}

	if err := e.ScheduleRecheck(id, Channel("teleport"), time.Second); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("unknown channel error = %v", err)
	}
	if err := e.ScheduleRecheck(uuid.New(), ChannelClick, time.Second); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("unknown subject error = %v", err)
	}
}

func TestEngine_SuspicionDecays(t *testing.T) {
	e := newTestEngine(t, strictClickConfig())
	id := uuid.New()

	clicks(t, e, id, t0, 15, 15)
	e.Tick(t0.Add(time.Second))
	before, _ := e.Snapshot(id)

	e.Tick(t0.Add(2 * time.Second))
	after, _ := e.Snapshot(id)

	want := before.Suspicion - DefaultConfig().Trust.DecayPerTick
	if math.Abs(after.Suspicion-want) > 1e-9 {
		t.Errorf("suspicion = %v, want %v after one quiet tick", after.Suspicion, want)
	}
}

func TestEngine_CorroboratedChannelsCompound(t *testing.T) {
	cfg := strictClickConfig()

	single := newTestEngine(t, cfg)
	a := uuid.New()
	clicks(t, single, a, t0, 15, 15)
	single.Tick(t0.Add(time.Second))

	both := newTestEngine(t, cfg)
	b := uuid.New()
	clicks(t, both, b, t0, 15, 15)
	if err := both.Ingest(b, ChannelReach, 5.25, t0.Add(500*time.Millisecond)); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	both.Tick(t0.Add(time.Second))

	sa, _ := single.Snapshot(a)
	sb, _ := both.Snapshot(b)
	if sb.Suspicion <= 2*sa.Suspicion {
		t.Errorf("two channels = %v, one channel = %v; corroboration should compound", sb.Suspicion, sa.Suspicion)
	}
}

func TestEngine_ValueChannelJudgesSamplesOnce(t *testing.T) {
	cfg := DefaultConfig()
	reach := cfg.Channels[ChannelReach]
	reach.ViolationInterval = 0
	cfg.Channels[ChannelReach] = reach

	handler := &captureHandler{}
	e := newTestEngine(t, cfg, WithActionHandler(handler))
	id := uuid.New()

	if err := e.Ingest(id, ChannelReach, 4.0, t0); err != nil {
		t.Fatal(err)
	}
	e.Tick(t0.Add(100 * time.Millisecond))

	if err := e.Ingest(id, ChannelReach, 3.0, t0.Add(200*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	e.Tick(t0.Add(300 * time.Millisecond))

	decisions := handler.all()
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	if decisions[0].Reason.Kind != ReasonValueCeiling || decisions[0].Reason.Measured != 4.0 {
		t.Errorf("reason = %+v", decisions[0].Reason)
	}
}

func TestEngine_LateValueBehindNewestIsJudged(t *testing.T) {
	handler := &captureHandler{}
	e := newTestEngine(t, DefaultConfig(), WithActionHandler(handler))
	id := uuid.New()

	for _, at := range []time.Duration{time.Second, 2 * time.Second} {
		if err := e.Ingest(id, ChannelReach, 1.0, t0.Add(at)); err != nil {
			t.Fatal(err)
		}
	}
	e.Tick(t0.Add(2050 * time.Millisecond))
	if got := handler.all(); len(got) != 0 {
		t.Fatalf("decisions = %d before the late sample, want 0", len(got))
	}

	// Older than the newest sample but inside the window: accepted and
	// inserted in time order.
	if err := e.Ingest(id, ChannelReach, 9.0, t0.Add(1800*time.Millisecond)); err != nil {
		t.Fatalf("late sample rejected: %v", err)
	}
	e.Tick(t0.Add(2100 * time.Millisecond))
	e.Tick(t0.Add(2150 * time.Millisecond))

	decisions := handler.all()
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1 for the late over-ceiling value", len(decisions))
	}
	if r := decisions[0].Reason; r.Kind != ReasonValueCeiling || r.Measured != 9.0 {
		t.Errorf("reason = %+v, want value ceiling measured 9", r)
	}
}

func TestEngine_ValueWaitsForMinSamples(t *testing.T) {
	cfg := DefaultConfig()
	reach := cfg.Channels[ChannelReach]
	reach.MinSamples = 2
	reach.ViolationInterval = 0
	cfg.Channels[ChannelReach] = reach

	handler := &captureHandler{}
	e := newTestEngine(t, cfg, WithActionHandler(handler))
	id := uuid.New()

	if err := e.Ingest(id, ChannelReach, 6.0, t0); err != nil {
		t.Fatal(err)
	}
	e.Tick(t0.Add(50 * time.Millisecond))
	if got := handler.all(); len(got) != 0 {
		t.Fatalf("decisions = %d on insufficient data, want 0", len(got))
	}

	if err := e.Ingest(id, ChannelReach, 1.0, t0.Add(100*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	e.Tick(t0.Add(150 * time.Millisecond))

	decisions := handler.all()
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1 once enough samples arrived", len(decisions))
	}
	if got := decisions[0].Reason.Measured; got != 6.0 {
		t.Errorf("Measured = %v, want the value held back while data was insufficient", got)
	}
}

func TestEngine_ConcurrentIngestAndTick(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ids := make([]SubjectID, 8)
	for i := range ids {
		ids[i] = uuid.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil; i++ {
			e.Tick(t0.Add(time.Duration(i) * time.Millisecond))
		}
	}()

	var ingest sync.WaitGroup
	for _, id := range ids {
		ingest.Add(1)
		go func() {
			defer ingest.Done()
			for i := 0; i < 200; i++ {
				_ = e.Ingest(id, ChannelMovement, float64(i%7), t0.Add(time.Duration(i)*10*time.Millisecond))
				if i == 150 {
					_ = e.Deregister(id)
				}
			}
		}()
	}
	ingest.Wait()
	cancel()
	wg.Wait()

	if got := len(e.Subjects()); got != len(ids) {
		t.Errorf("Subjects() = %d, want %d re-created after deregistration", got, len(ids))
	}
}

func TestEngine_RunWithContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	e := newTestEngine(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunWithContext(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunWithContext() did not stop")
	}

	// The engine can be run again after a restart.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	if err := e.RunWithContext(ctx2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second RunWithContext() error = %v", err)
	}
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	e := NewEngine(DefaultConfig(), WithLedger(newMemLedger()))
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
