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
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// ActionPublisher is a detection.ActionHandler that publishes every decision
// on the actions topic. Game servers consume it and enact the kick, ban or
// warning themselves.
//
// It does not own the underlying publisher; the caller closes it.
type ActionPublisher struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[interface{}]
}

var _ detection.ActionHandler = (*ActionPublisher)(nil)

// NewActionPublisher wraps a watermill publisher. The breaker opens after
// five consecutive publish failures.
func NewActionPublisher(pub message.Publisher, topic string) *ActionPublisher {
	return &ActionPublisher{
		publisher: pub,
		topic:     topic,
		breaker: gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
			Name:        "nats-actions",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.SetCircuitBreakerState(name, to.String())
				logging.Warn().
					Str("publisher", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("action publisher circuit breaker state changed")
			},
		}),
	}
}

// OnViolation implements detection.ActionHandler.
func (p *ActionPublisher) OnViolation(ctx context.Context, d detection.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("subject", d.Subject.String())
	msg.Metadata.Set("channel", string(d.Channel))
	msg.Metadata.Set("action", string(d.Action.Kind))
	msg.Metadata.Set("state", d.State.String())
	msg.Metadata.Set("severity", strconv.Itoa(d.Severity))

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(p.topic, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("actions publisher unavailable: %w", err)
	}
	if err != nil {
		return fmt.Errorf("publish action: %w", err)
	}

	metrics.ActionsPublished.Inc()
	return nil
}

// BreakerState returns the circuit breaker state name.
func (p *ActionPublisher) BreakerState() string {
	return p.breaker.State().String()
}
