// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Dispatcher fans alerts out to sinks off the decision path.
//
// Dispatch only enqueues. When the queue is full the alert is dropped,
// counted and logged as ErrSinkUnavailable. Workers deliver each alert to
// each sink once; failures are logged and counted, never retried.
type Dispatcher struct {
	cfg   DispatchConfig
	queue chan *Alert

	mu    sync.RWMutex
	sinks []Sink
}

// NewDispatcher creates a dispatcher. Call Run to start delivery.
func NewDispatcher(cfg DispatchConfig, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		cfg:   cfg,
		queue: make(chan *Alert, max(cfg.QueueSize, 1)),
		sinks: sinks,
	}
}

// AddSink registers another sink.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
	logging.Info().Str("sink", s.Name()).Msg("registered alert sink")
}

// Sinks returns the registered sink names.
func (d *Dispatcher) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// BreakerReporter is implemented by sinks guarded by a circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// SinkStates returns the state of every sink by name: "disabled" for a
// sink that reports itself disabled, the breaker state for sinks with a
// breaker, "ok" otherwise.
func (d *Dispatcher) SinkStates() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	states := make(map[string]string, len(d.sinks))
	for _, s := range d.sinks {
		state := "ok"
		if b, ok := s.(BreakerReporter); ok {
			state = b.BreakerState()
		}
		if e, ok := s.(interface{ Enabled() bool }); ok && !e.Enabled() {
			state = "disabled"
		}
		states[s.Name()] = state
	}
	return states
}

// Dispatch enqueues an alert without blocking. It reports whether the alert
// was accepted.
func (d *Dispatcher) Dispatch(alert *Alert) bool {
	select {
	case d.queue <- alert:
		metrics.AlertQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		metrics.AlertsDropped.Inc()
		logging.Warn().
			Err(fmt.Errorf("%w: dispatch queue full", ErrSinkUnavailable)).
			Str("subject", alert.Subject.String()).
			Int("severity", alert.Severity).
			Msg("dropping alert")
		return false
	}
}

// Run delivers queued alerts on Workers goroutines until ctx is canceled.
// Alerts still queued at cancellation stay in the queue for the next Run.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < max(d.cfg.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-d.queue:
			metrics.AlertQueueDepth.Set(float64(len(d.queue)))
			d.deliver(ctx, alert)
		}
	}
}

// deliver sends one alert to every sink once.
func (d *Dispatcher) deliver(ctx context.Context, alert *Alert) {
	d.mu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, s := range sinks {
		sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err := sendSafe(sctx, s, alert)
		cancel()

		metrics.RecordAlertDelivery(s.Name(), err)
		if err != nil {
			logging.Error().Err(err).
				Str("sink", s.Name()).
				Str("alert_id", alert.ID).
				Str("subject", alert.Subject.String()).
				Msg("failed to send alert")
		}
	}
}

func sendSafe(ctx context.Context, s Sink, alert *Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sink panic: %v", ErrSinkUnavailable, r)
		}
	}()
	return s.Send(ctx, alert)
}

// LogSink writes alerts to the structured log.
type LogSink struct{}

// Name implements Sink.
func (LogSink) Name() string { return "log" }

// Send implements Sink.
func (LogSink) Send(_ context.Context, alert *Alert) error {
	logging.Warn().
		Str("alert_id", alert.ID).
		Str("subject", alert.Subject.String()).
		Str("channel", string(alert.Channel)).
		Int("severity", alert.Severity).
		Str("action", alert.Action.String()).
		Str("state", alert.State.String()).
		Float64("trust", alert.Trust).
		Time("timestamp", alert.Timestamp).
		Msg(alert.Title + ": " + alert.Message)
	return nil
}

// sendTimeout is used by sinks when the caller sets no deadline.
const sendTimeout = 10 * time.Second
