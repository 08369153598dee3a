// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package services adapts Vigil components to suture.Service.

Each wrapper translates a component lifecycle into Serve(ctx) error and
names the service through fmt.Stringer for supervisor logs:

  - EngineService: detection.Engine.RunWithContext (tick loop)
  - DispatcherService: detection.Dispatcher.Run (alert delivery workers)
  - WebSocketHubService: websocket.Hub.RunWithContext
  - IngestService: ingest.Router.Run (watermill router over NATS)
  - HTTPServerService: *http.Server with graceful shutdown
  - StartStopService: Start/Stop components such as store.GCLoop
  - BrokerService: the embedded NATS server (Start/Shutdown)

Interfaces are declared here so this package does not import the
components it wraps.
*/
package services
