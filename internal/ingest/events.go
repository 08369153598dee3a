// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/detection"
)

// ErrMalformed marks payloads that cannot be decoded. They are never retried.
var ErrMalformed = errors.New("malformed payload")

// SampleEvent is one behavior sample reported by a game server. The channel
// comes from the topic.
type SampleEvent struct {
	Subject detection.SubjectID `json:"subject"`
	Value   float64             `json:"value"`
	Time    time.Time           `json:"time"`
}

// SessionKind is a session lifecycle transition.
type SessionKind string

const (
	SessionJoin  SessionKind = "join"
	SessionLeave SessionKind = "leave"
)

// SessionEvent reports a player joining or leaving.
type SessionEvent struct {
	Subject detection.SubjectID `json:"subject"`
	Kind    SessionKind         `json:"kind"`
	Server  string              `json:"server,omitempty"`
	Time    time.Time           `json:"time"`
}

// decodeSamples accepts a single sample object or an array of samples.
func decodeSamples(payload []byte) ([]SampleEvent, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	if trimmed[0] == '[' {
		var batch []SampleEvent
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return batch, nil
	}

	var one SampleEvent
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return []SampleEvent{one}, nil
}

func decodeSession(payload []byte) (SessionEvent, error) {
	var ev SessionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch ev.Kind {
	case SessionJoin, SessionLeave:
	default:
		return ev, fmt.Errorf("%w: unknown session kind %q", ErrMalformed, ev.Kind)
	}
	return ev, nil
}
