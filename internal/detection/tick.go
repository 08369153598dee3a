// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// analysisJob carries the dirty channels of one subject through a tick.
type analysisJob struct {
	sub      *subject
	channels []Channel
	peaks    []float64
	results  []AnalysisResult
	found    []bool
}

// Tick advances the engine to now. See TickContext.
func (e *Engine) Tick(now time.Time) {
	e.TickContext(context.Background(), now)
}

// TickContext advances the engine to now:
//
//  1. runs due scheduled tasks (freeze expiry, rechecks)
//  2. evicts samples older than each channel's max age
//  3. analyzes subjects with new samples on a bounded worker pool
//  4. merges results, skipping subjects deregistered meanwhile
//  5. applies fusion, violations, score decay and counter cooldown
//
// Decisions are delivered to the action handler and dispatcher after all
// subject locks are released. ctx is passed to the action handler.
func (e *Engine) TickContext(ctx context.Context, now time.Time) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	e.lastTick = now

	e.runDueTasks(now)
	e.windows.EvictExpired(now)

	jobs := e.collectDirty()
	e.analyzeJobs(jobs)

	analyzed := make(map[*subject]struct{}, len(jobs))
	var decisions []Decision
	for _, job := range jobs {
		var merged bool
		decisions, merged = e.mergeJob(job, now, decisions)
		if !merged {
			metrics.AnalysesDiscarded.Inc()
			continue
		}
		analyzed[job.sub] = struct{}{}
	}

	for _, sub := range e.snapshotSubjects() {
		_, fresh := analyzed[sub]
		e.settle(sub, now, !fresh)
	}

	for _, d := range decisions {
		e.deliver(ctx, d)
	}

	metrics.RecordTick(time.Since(start), e.cfg.TickInterval)
}

func (e *Engine) snapshotSubjects() []*subject {
	e.mu.RLock()
	defer e.mu.RUnlock()
	subs := make([]*subject, 0, len(e.subjects))
	for _, sub := range e.subjects {
		subs = append(subs, sub)
	}
	return subs
}

// runDueTasks executes scheduled tasks whose due time has passed. Tasks bound
// to a deregistered subject instance are dropped.
func (e *Engine) runDueTasks(now time.Time) {
	for _, t := range e.tasks.popDue(now) {
		t.subject.mu.Lock()
		removed := t.subject.removed
		t.subject.mu.Unlock()
		if removed {
			continue
		}
		metrics.ScheduledTasks.WithLabelValues(string(t.kind)).Inc()

		switch t.kind {
		case taskUnfreeze:
			t.subject.mu.Lock()
			from := t.subject.visibleState()
			lifted := t.subject.unfreeze(now)
			to := t.subject.visibleState()
			t.subject.mu.Unlock()

			if lifted {
				metrics.RecordTransition(from.String(), to.String())
				logging.Info().
					Str("subject", t.subject.id.String()).
					Str("state", to.String()).
					Msg("freeze lifted")
			}
		case taskRecheck:
			t.subject.mu.Lock()
			t.subject.dirty[t.channel] = struct{}{}
			t.subject.mu.Unlock()
		}
	}
}

// collectDirty takes the dirty channel sets of every subject.
func (e *Engine) collectDirty() []*analysisJob {
	var jobs []*analysisJob
	for _, sub := range e.snapshotSubjects() {
		sub.mu.Lock()
		channels, peaks := sub.takeDirty()
		sub.mu.Unlock()
		if len(channels) == 0 {
			continue
		}
		jobs = append(jobs, &analysisJob{
			sub:      sub,
			channels: channels,
			peaks:    peaks,
			results:  make([]AnalysisResult, len(channels)),
			found:    make([]bool, len(channels)),
		})
	}
	return jobs
}

// analyzeJobs runs the feature pipeline for every job, at most Workers
// subjects at a time. Analysis only reads windows.
func (e *Engine) analyzeJobs(jobs []*analysisJob) {
	if len(jobs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(max(e.cfg.Workers, 1))
	for _, job := range jobs {
		g.Go(func() error {
			for i, ch := range job.channels {
				job.results[i], job.found[i] = e.analyzeChannel(job.sub.id, ch, e.cfg.Channels[ch], &job.peaks[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}

// mergeJob folds a job's results into its subject: it stores the results,
// fuses the suspicion score and records violations. merged is false when the
// subject was deregistered after its windows were read.
func (e *Engine) mergeJob(job *analysisJob, now time.Time, decisions []Decision) (_ []Decision, merged bool) {
	sub := job.sub
	contributions := make([]float64, 0, len(job.results))
	var found []violation

	for i, res := range job.results {
		if !job.found[i] {
			continue
		}
		ch := job.channels[i]
		cfg := e.cfg.Channels[ch]

		metrics.RecordAnalysis(string(ch), string(res.Status), string(res.Label))
		contributions = append(contributions, contribution(res, cfg, e.cfg.Trust))
		if v, ok := detectViolation(res, cfg); ok {
			found = append(found, v)
		}
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.removed {
		return decisions, false
	}

	for i, res := range job.results {
		if !job.found[i] {
			continue
		}
		sub.results[res.Channel] = res
		// Values seen by an analysis too small to judge stay pending.
		if res.Status == StatusInsufficientData && !math.IsInf(job.peaks[i], -1) {
			sub.notePending(res.Channel, job.peaks[i])
		}
	}

	score, contributed := fuse(sub.suspicion, contributions, e.cfg.Trust)
	sub.suspicion = score
	if contributed {
		metrics.SuspicionScore.Observe(score)
	}

	for _, v := range found {
		if sub.debounced(v, now) {
			continue
		}
		d, ok := sub.record(v, now)
		if !ok {
			continue
		}
		metrics.ViolationsTotal.WithLabelValues(string(v.channel), string(v.reason.Kind)).Inc()
		metrics.RecordTransition(d.Previous.String(), d.State.String())
		e.afterViolation(sub, d)
		decisions = append(decisions, d)
	}
	return decisions, true
}

// afterViolation schedules the freeze expiry and queues ledger writes
// (must hold sub.mu).
func (e *Engine) afterViolation(sub *subject, d Decision) {
	if d.Action.Kind == ActionFreeze {
		e.tasks.schedule(&task{
			kind:    taskUnfreeze,
			subject: sub,
			due:     sub.frozenUntil,
			key:     fmt.Sprintf("%s:%s", taskUnfreeze, sub.id),
		})
	}

	rec := sub.history[len(sub.history)-1]
	offenses := sub.offenses
	e.persist("record_violation", sub.id, func(ctx context.Context, l Ledger) error {
		return l.RecordViolation(ctx, d.Subject, rec, offenses)
	})
	if d.Action.Kind == ActionBan {
		e.persist("ban", sub.id, func(ctx context.Context, l Ledger) error {
			return l.SetBanned(ctx, d.Subject, true, d.Time)
		})
	}

	logging.Info().
		Str("subject", d.Subject.String()).
		Str("channel", string(d.Channel)).
		Str("state", d.State.String()).
		Str("previous_state", d.Previous.String()).
		Int("severity", d.Severity).
		Int("counter", d.Counter).
		Int("offenses", d.Offenses).
		Str("action", d.Action.String()).
		Str("reason", d.Reason.String()).
		Msg("violation recorded")
}

// settle applies per-tick upkeep to a subject: score decay when it was not
// analyzed this tick, and counter cooldown.
func (e *Engine) settle(sub *subject, now time.Time, decay bool) {
	sub.mu.Lock()
	if decay && sub.suspicion > 0 {
		sub.suspicion, _ = fuse(sub.suspicion, nil, e.cfg.Trust)
	}
	from, to := sub.cool(now)
	sub.mu.Unlock()

	if from != to {
		metrics.RecordTransition(from.String(), to.String())
		logging.Debug().
			Str("subject", sub.id.String()).
			Str("previous_state", from.String()).
			Str("state", to.String()).
			Msg("escalation cooled down")
	}
}

// deliver hands a decision to the host callback and the dispatcher. Handler
// errors and panics are logged and counted; the decision stands either way.
func (e *Engine) deliver(ctx context.Context, d Decision) {
	if e.handler != nil {
		if err := e.callHandler(ctx, d); err != nil {
			metrics.HandlerFailures.Inc()
			logging.Error().Err(err).
				Str("subject", d.Subject.String()).
				Str("action", d.Action.String()).
				Msg("action handler failed")
		}
	}
	if e.dispatcher != nil {
		e.dispatcher.Dispatch(NewAlert(d))
	}
}

func (e *Engine) callHandler(ctx context.Context, d Decision) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action handler panic: %v", r)
		}
	}()
	return e.handler.OnViolation(ctx, d)
}
