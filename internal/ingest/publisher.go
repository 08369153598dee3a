// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// ErrPublisherClosed is returned by Send after Close.
var ErrPublisherClosed = errors.New("alert publisher is closed")

// AlertPublisher is a detection.Sink that publishes alerts on the alerts
// topic, where game servers pick them up as in-game staff notices.
type AlertPublisher struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[interface{}]

	mu     sync.RWMutex
	closed bool
}

var _ detection.Sink = (*AlertPublisher)(nil)

// NewAlertPublisher wraps a watermill publisher. The breaker opens after
// five consecutive publish failures.
func NewAlertPublisher(pub message.Publisher, topic string) *AlertPublisher {
	return &AlertPublisher{
		publisher: pub,
		topic:     topic,
		breaker: gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
			Name:        "nats-alerts",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.SetCircuitBreakerState(name, to.String())
				logging.Warn().
					Str("sink", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("alert publisher circuit breaker state changed")
			},
		}),
	}
}

// Name implements detection.Sink.
func (p *AlertPublisher) Name() string {
	return "nats"
}

// Send implements detection.Sink.
func (p *AlertPublisher) Send(ctx context.Context, alert *detection.Alert) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := message.NewMessage(alert.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("subject", alert.Subject.String())
	msg.Metadata.Set("channel", string(alert.Channel))
	msg.Metadata.Set("severity", strconv.Itoa(alert.Severity))
	msg.Metadata.Set("action", string(alert.Action.Kind))

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(p.topic, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: nats: %v", detection.ErrSinkUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	metrics.AlertsPublished.Inc()
	return nil
}

// BreakerState returns the circuit breaker state name.
func (p *AlertPublisher) BreakerState() string {
	return p.breaker.State().String()
}

// Close closes the underlying publisher. It is safe to call more than once.
func (p *AlertPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
