// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status     string            `json:"status"`
	Subjects   int               `json:"subjects"`
	Channels   int               `json:"channels"`
	Components map[string]string `json:"components"`
}

const healthCheckTimeout = 2 * time.Second

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady answers 503 while the store cannot be reached.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.pingStore(r.Context()); err != nil {
		rw.ServiceUnavailable("Store unavailable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// Health reports component status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:     "healthy",
		Subjects:   len(h.engine.Subjects()),
		Channels:   len(h.engine.Config().Channels),
		Components: map[string]string{"engine": "ok"},
	}

	switch {
	case h.store == nil:
		status.Components["store"] = "disabled"
	case h.pingStore(r.Context()) != nil:
		status.Components["store"] = "unavailable"
		status.Status = "degraded"
	default:
		status.Components["store"] = "ok"
	}

	if h.wsHub == nil {
		status.Components["websocket"] = "disabled"
	} else {
		status.Components["websocket"] = "ok"
	}

	if h.sinks != nil {
		for name, state := range h.sinks.SinkStates() {
			status.Components["sink:"+name] = state
			if state == "open" {
				status.Status = "degraded"
			}
		}
	}

	NewResponseWriter(w, r).Success(status)
}

func (h *Handler) pingStore(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return h.store.Ping(ctx)
}
