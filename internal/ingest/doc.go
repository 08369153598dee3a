// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package ingest connects the detection engine to game servers over NATS.

Game servers publish behavior samples and session events; Vigil publishes
alerts back. All payloads are JSON.

# Topics

	vigil.samples.<channel>   SampleEvent or []SampleEvent   (server -> vigil)
	vigil.sessions            SessionEvent                   (server -> vigil)
	vigil.alerts              detection.Alert                (vigil -> servers)

One sample handler is registered per configured channel, so an unknown
channel never reaches the engine from the router.

# Delivery

Samples are fire-and-forget: a malformed or rejected sample is counted and
acknowledged, never retried. Session events are retried with exponential
backoff because a failed Register (ledger unavailable) must not silently
admit a banned player. Messages that still fail go to the poison queue
topic when one is configured.

The watermill router is rebuilt on every Run, so the supervisor can restart
it after a failure.
*/
package ingest
