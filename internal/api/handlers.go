// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/store"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

// Engine is the part of detection.Engine the API reads and drives.
type Engine interface {
	Config() detection.Config
	Subjects() []detection.SubjectID
	Snapshot(id detection.SubjectID) (detection.Snapshot, error)
	Analyze(id detection.SubjectID, channel detection.Channel) detection.AnalysisResult
	History(id detection.SubjectID) ([]detection.ViolationRecord, error)
	Pardon(ctx context.Context, id detection.SubjectID, p detection.Pardon) (detection.Snapshot, error)
	ScheduleRecheck(id detection.SubjectID, channel detection.Channel, delay time.Duration) error
}

// Store is the durable ledger the API queries.
type Store interface {
	Ping(ctx context.Context) error
	Offenses(ctx context.Context, id detection.SubjectID) (int, error)
	History(ctx context.Context, id detection.SubjectID, limit int) ([]detection.ViolationRecord, error)
	Pardons(ctx context.Context, id detection.SubjectID) ([]detection.Pardon, error)
	Ban(ctx context.Context, id detection.SubjectID) (store.Ban, error)
	Bans(ctx context.Context) ([]store.Ban, error)
	SetBanned(ctx context.Context, id detection.SubjectID, banned bool, at time.Time) error
	RecordPardon(ctx context.Context, id detection.SubjectID, p detection.Pardon) error
}

// SinkStatus reports the state of each alert sink by name.
type SinkStatus interface {
	SinkStates() map[string]string
}

var (
	_ Engine     = (*detection.Engine)(nil)
	_ Store      = (*store.Store)(nil)
	_ SinkStatus = (*detection.Dispatcher)(nil)
)

// Handler serves the admin API.
type Handler struct {
	engine Engine
	store  Store
	wsHub  *ws.Hub
	sinks  SinkStatus
	config Config
	now    func() time.Time
}

// NewHandler creates the API handler. st, hub and sinks may be nil;
// endpoints that need them answer 503.
func NewHandler(cfg Config, engine Engine, st Store, hub *ws.Hub, sinks SinkStatus) *Handler {
	return &Handler{
		engine: engine,
		store:  st,
		wsHub:  hub,
		sinks:  sinks,
		config: cfg,
		now:    time.Now,
	}
}

// subjectParam parses the {id} URL parameter and writes a 400 on failure.
func subjectParam(w http.ResponseWriter, r *http.Request) (detection.SubjectID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		NewResponseWriter(w, r).BadRequest("Invalid subject id")
		return uuid.Nil, false
	}
	return id, true
}

// intQuery parses a non-negative integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

// respondEngineError maps engine errors to responses.
func respondEngineError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, detection.ErrUnknownSubject):
		rw.NotFound("Subject is not tracked")
	case errors.Is(err, detection.ErrUnknownChannel):
		rw.BadRequest("Unknown channel")
	default:
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
	}
}
