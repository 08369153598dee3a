// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Message results recorded in metrics.MessagesConsumed.
const (
	resultOK       = "ok"
	resultInvalid  = "invalid"
	resultRejected = "rejected"
	resultError    = "error"
)

// Engine is the part of detection.Engine the handlers drive.
type Engine interface {
	Register(ctx context.Context, id detection.SubjectID) (detection.State, error)
	Deregister(id detection.SubjectID) error
	Ingest(id detection.SubjectID, channel detection.Channel, value float64, t time.Time) error
}

var _ Engine = (*detection.Engine)(nil)

// Handlers turns decoded events into engine calls.
type Handlers struct {
	engine Engine
	now    func() time.Time
}

// NewHandlers creates handlers for an engine.
func NewHandlers(engine Engine) *Handlers {
	return &Handlers{engine: engine, now: time.Now}
}

// SampleHandler returns the consumer for one channel topic. Invalid and
// rejected samples are acknowledged; a retry would fail the same way.
func (h *Handlers) SampleHandler(topic string, channel detection.Channel) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		events, err := decodeSamples(msg.Payload)
		if err != nil {
			metrics.MessagesConsumed.WithLabelValues(topic, resultInvalid).Inc()
			logging.Debug().
				Err(err).
				Str("topic", topic).
				Str("message_uuid", msg.UUID).
				Msg("dropping malformed sample message")
			return nil
		}

		result := resultOK
		for _, ev := range events {
			if ev.Subject == uuid.Nil {
				result = resultInvalid
				continue
			}
			t := ev.Time
			if t.IsZero() {
				t = h.now()
			}
			if err := h.engine.Ingest(ev.Subject, channel, ev.Value, t); err != nil {
				if errors.Is(err, detection.ErrInvalidSample) {
					result = resultRejected
					continue
				}
				return fmt.Errorf("ingest sample for %s: %w", ev.Subject, err)
			}
		}

		metrics.MessagesConsumed.WithLabelValues(topic, result).Inc()
		return nil
	}
}

// SessionHandler returns the consumer for session events. A failed
// Register is returned so the router retries it.
func (h *Handlers) SessionHandler(topic string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ev, err := decodeSession(msg.Payload)
		if err != nil || ev.Subject == uuid.Nil {
			metrics.MessagesConsumed.WithLabelValues(topic, resultInvalid).Inc()
			logging.Debug().
				Err(err).
				Str("topic", topic).
				Str("message_uuid", msg.UUID).
				Msg("dropping malformed session message")
			return nil
		}

		switch ev.Kind {
		case SessionJoin:
			state, err := h.engine.Register(msg.Context(), ev.Subject)
			if err != nil {
				metrics.MessagesConsumed.WithLabelValues(topic, resultError).Inc()
				return fmt.Errorf("register %s: %w", ev.Subject, err)
			}
			if state == detection.StateBanned {
				logging.Warn().
					Str("subject", ev.Subject.String()).
					Str("server", ev.Server).
					Msg("banned subject joined")
			}
		case SessionLeave:
			if err := h.engine.Deregister(ev.Subject); err != nil && !errors.Is(err, detection.ErrUnknownSubject) {
				metrics.MessagesConsumed.WithLabelValues(topic, resultError).Inc()
				return fmt.Errorf("deregister %s: %w", ev.Subject, err)
			}
		}

		metrics.MessagesConsumed.WithLabelValues(topic, resultOK).Inc()
		return nil
	}
}
