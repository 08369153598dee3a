// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package supervisor provides suture v4 process supervision for Vigil.

# Tree

	vigil (root)
	├── data-layer       embedded NATS broker, store value-log GC
	├── engine-layer     detection tick loop, alert dispatcher
	├── messaging-layer  websocket hub, ingest router
	└── api-layer        HTTP server

A crash in one layer restarts only that service. The engine layer keeps
ticking while the broker reconnects, and the API keeps answering snapshot
queries while ingest is down.

Services are added with AddDataService, AddEngineService,
AddMessagingService and AddAPIService. The wrappers in the services
subpackage adapt Vigil components to suture.Service.

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
When it exceeds FailureThreshold the supervisor waits FailureBackoff before
restarting. Serve returning nil stops a service for good; returning an error
restarts it.

Supervisor events are logged through sutureslog with the zerolog-backed slog
handler from the logging package.

# Configuration

	supervisor:
	  failure_threshold: 5
	  failure_decay: 30
	  failure_backoff: 15s
	  shutdown_timeout: 10s

If services do not stop within ShutdownTimeout, UnstoppedServiceReport lists
them.
*/
package supervisor
