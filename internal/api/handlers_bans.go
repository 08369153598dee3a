// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/store"
)

// ListBans returns the ban list.
func (h *Handler) ListBans(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.store == nil {
		rw.ServiceUnavailable("Store not configured")
		return
	}

	bans, err := h.store.Bans(r.Context())
	if err != nil {
		rw.StoreError(err)
		return
	}
	if bans == nil {
		bans = []store.Ban{}
	}
	rw.Success(bans)
}

// DeleteBan lifts a ban. A tracked subject is pardoned through the engine
// so its live state is reset too; otherwise the ledger is updated directly
// and the pardon recorded.
func (h *Handler) DeleteBan(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)
	if h.store == nil {
		rw.ServiceUnavailable("Store not configured")
		return
	}

	var req PardonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			rw.ValidationError("Invalid request body")
			return
		}
	}

	ctx := r.Context()
	if _, err := h.store.Ban(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("Subject is not banned")
			return
		}
		rw.StoreError(err)
		return
	}

	p := detection.Pardon{By: staffName(r), Note: req.Note, Time: h.now()}
	snap, err := h.engine.Pardon(ctx, id, p)
	switch {
	case err == nil:
		rw.Success(snap)
		return
	case !errors.Is(err, detection.ErrUnknownSubject):
		respondEngineError(rw, err)
		return
	}

	if err := h.store.RecordPardon(ctx, id, p); err != nil {
		rw.StoreError(err)
		return
	}
	if err := h.store.SetBanned(ctx, id, false, p.Time); err != nil {
		rw.StoreError(err)
		return
	}

	logging.Ctx(logging.ContextWithSubject(ctx, id)).Info().
		Str("by", p.By).
		Msg("ban lifted for offline subject")
	rw.Success(map[string]interface{}{"subject": id, "banned": false})
}
