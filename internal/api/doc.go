// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package api provides the staff admin API over chi.

Routes:

	GET    /metrics                                   Prometheus scrape
	GET    /api/v1/health                             component health
	GET    /api/v1/health/live                        liveness
	GET    /api/v1/health/ready                       readiness (store ping)

	viewer:
	GET    /api/v1/subjects                           tracked subjects
	GET    /api/v1/subjects/{id}                      snapshot (includes recently departed)
	GET    /api/v1/subjects/{id}/analysis/{channel}   fresh channel analysis
	GET    /api/v1/subjects/{id}/history              violation history
	GET    /api/v1/subjects/{id}/pardons              pardon log
	GET    /api/v1/bans                               ban list
	GET    /api/v1/ws                                 live alert feed (websocket)

	moderator:
	POST   /api/v1/subjects/{id}/pardon               reset escalation
	POST   /api/v1/subjects/{id}/recheck              schedule a recheck

	admin:
	DELETE /api/v1/bans/{id}                          lift a ban for an offline subject

All JSON responses use the APIResponse envelope.
*/
package api
