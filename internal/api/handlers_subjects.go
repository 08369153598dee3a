// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
)

// SubjectSummary is one row of the subject list.
type SubjectSummary struct {
	Subject   detection.SubjectID `json:"subject"`
	State     detection.State     `json:"state"`
	Counter   int                 `json:"counter"`
	Offenses  int                 `json:"offenses"`
	Suspicion float64             `json:"suspicion"`
	Trust     float64             `json:"trust"`
	Frozen    bool                `json:"frozen"`
}

// ListSubjects returns tracked subjects in ID order. Query parameters:
// state filters by escalation state, min_suspicion by score, limit and
// offset paginate (default limit 100).
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var stateFilter *detection.State
	if raw := r.URL.Query().Get("state"); raw != "" {
		var s detection.State
		if err := s.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			rw.BadRequest("Invalid state")
			return
		}
		stateFilter = &s
	}
	minSuspicion, err := intQuery(r, "min_suspicion", 0)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	limit, err := intQuery(r, "limit", 100)
	if err != nil || limit == 0 {
		rw.BadRequest("invalid limit")
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	summaries := make([]SubjectSummary, 0)
	for _, id := range h.engine.Subjects() {
		snap, err := h.engine.Snapshot(id)
		if err != nil {
			// Departed between listing and lookup.
			continue
		}
		if stateFilter != nil && snap.State != *stateFilter {
			continue
		}
		if snap.Suspicion < float64(minSuspicion) {
			continue
		}
		summaries = append(summaries, SubjectSummary{
			Subject:   snap.Subject,
			State:     snap.State,
			Counter:   snap.Counter,
			Offenses:  snap.Offenses,
			Suspicion: snap.Suspicion,
			Trust:     snap.Trust,
			Frozen:    snap.Frozen,
		})
	}

	total := len(summaries)
	start := min(offset, total)
	end := start + min(limit, total-start)
	page := summaries[start:end]

	rw.SuccessWithPagination(page, &PaginationMeta{
		Total:   total,
		Count:   len(page),
		Offset:  offset,
		Limit:   limit,
		HasMore: end < total,
	})
}

// GetSubject returns a subject snapshot. Recently departed subjects are
// still served with departed set.
func (h *Handler) GetSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	snap, err := h.engine.Snapshot(id)
	if err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.Success(snap)
}

// GetAnalysis runs a fresh analysis of one channel window.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	channel := detection.Channel(chi.URLParam(r, "channel"))
	if _, known := h.engine.Config().Channels[channel]; !known {
		rw.BadRequest("Unknown channel")
		return
	}
	if _, err := h.engine.Snapshot(id); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.Success(h.engine.Analyze(id, channel))
}

// GetHistory returns violation history, oldest first. source=store reads
// the durable ledger, source=memory the engine's bounded session history.
// The default is the store when one is configured.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	limit = min(limit, h.config.HistoryLimit)

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "memory"
		if h.store != nil {
			source = "store"
		}
	}

	var records []detection.ViolationRecord
	switch source {
	case "memory":
		records, err = h.engine.History(id)
		if err != nil {
			respondEngineError(rw, err)
			return
		}
		if limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}
	case "store":
		if h.store == nil {
			rw.ServiceUnavailable("Store not configured")
			return
		}
		records, err = h.store.History(r.Context(), id, limit)
		if err != nil {
			rw.StoreError(err)
			return
		}
	default:
		rw.BadRequest("source must be memory or store")
		return
	}

	if records == nil {
		records = []detection.ViolationRecord{}
	}
	rw.Success(records)
}

// GetPardons returns the pardon log of a subject.
func (h *Handler) GetPardons(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)
	if h.store == nil {
		rw.ServiceUnavailable("Store not configured")
		return
	}

	pardons, err := h.store.Pardons(r.Context(), id)
	if err != nil {
		rw.StoreError(err)
		return
	}
	if pardons == nil {
		pardons = []detection.Pardon{}
	}
	rw.Success(pardons)
}

// PardonRequest is the body of a pardon.
type PardonRequest struct {
	Note string `json:"note"`
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 * 1024

// PostPardon resets a tracked subject's escalation. The acting staff member
// comes from the token.
func (h *Handler) PostPardon(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	var req PardonRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			rw.ValidationError("Invalid request body")
			return
		}
	}

	p := detection.Pardon{By: staffName(r), Note: req.Note, Time: h.now()}
	snap, err := h.engine.Pardon(r.Context(), id, p)
	if err != nil {
		respondEngineError(rw, err)
		return
	}

	logging.Ctx(logging.ContextWithSubject(r.Context(), id)).Info().
		Str("by", p.By).
		Msg("pardon issued via API")
	rw.Success(snap)
}

// RecheckRequest is the body of a recheck.
type RecheckRequest struct {
	Channel detection.Channel `json:"channel"`
	// Delay is a Go duration string such as "30s". Empty means next tick.
	Delay string `json:"delay"`
}

// RecheckResponse acknowledges a scheduled recheck.
type RecheckResponse struct {
	Subject detection.SubjectID `json:"subject"`
	Channel detection.Channel   `json:"channel"`
	Delay   string              `json:"delay"`
}

// maxRecheckDelay bounds staff-scheduled rechecks.
const maxRecheckDelay = time.Hour

// PostRecheck schedules a fresh analysis of a channel.
func (h *Handler) PostRecheck(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	var req RecheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		rw.ValidationError("Invalid request body")
		return
	}

	var delay time.Duration
	if req.Delay != "" {
		d, err := time.ParseDuration(req.Delay)
		if err != nil || d < 0 || d > maxRecheckDelay {
			rw.ValidationError("delay must be a duration between 0 and 1h")
			return
		}
		delay = d
	}

	if err := h.engine.ScheduleRecheck(id, req.Channel, delay); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.Success(RecheckResponse{Subject: id, Channel: req.Channel, Delay: delay.String()})
}

func staffName(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Username != "" {
		return claims.Username
	}
	return "unknown"
}
