// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, authMW *auth.Middleware) *Router {
	return &Router{
		handler:       handler,
		auth:          authMW,
		chiMiddleware: NewChiMiddleware(handler.config),
	}
}

// Setup builds the HTTP handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(router.auth.Authenticate)

		r.Get("/ws", router.handler.WebSocket)

		r.Route("/subjects", func(r chi.Router) {
			r.Get("/", router.handler.ListSubjects)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", router.handler.GetSubject)
				r.Get("/analysis/{channel}", router.handler.GetAnalysis)
				r.Get("/history", router.handler.GetHistory)
				r.Get("/pardons", router.handler.GetPardons)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireRole(auth.RoleModerator))
					r.Post("/pardon", router.handler.PostPardon)
					r.Post("/recheck", router.handler.PostRecheck)
				})
			})
		})

		r.Route("/bans", func(r chi.Router) {
			r.Get("/", router.handler.ListBans)
			r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/{id}", router.handler.DeleteBan)
		})
	})

	return r
}
