// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package websocket provides the live staff alert feed.

The Hub is a detection.Sink: every alert the dispatcher routes to it is
broadcast to connected staff dashboards. It uses gorilla/websocket with a
hub-client architecture.

	┌──────────────┐      ┌─────┐
	│  Dispatcher  │ ───► │ Hub │ ← Broadcasts to all clients
	└──────────────┘      └──┬──┘
	                         │
	              ┌──────────┼──────────┐
	              │          │          │
	           Client1    Client2    Client3

Each client has two goroutines:
  - readPump: reads client messages (ping, subscribe)
  - writePump: writes broadcasts and keepalive pings

Message Types:

  - alert: a detection.Alert
  - ping / pong: application level keepalive
  - subscribe: client sets {"min_severity": N} to only receive alerts of
    at least that severity
  - subscribed: acknowledgement carrying the applied filter

The HTTP upgrade lives in the api package, which authenticates staff before
calling NewClient and Hub.Register.
*/
package websocket
