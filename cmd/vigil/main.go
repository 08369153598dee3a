// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package main is the entry point for the Vigil detection server.
//
// Vigil watches per-player behavioral telemetry (click rate, chat rate,
// mining rate, movement speed, reach distance), scores it against per-channel
// limits and escalates suspicious subjects from clean through warned, kicked
// and banned. Staff inspect subjects and grant pardons through the REST API
// and receive alerts in real time over WebSocket, NATS, webhooks and Discord.
//
// # Application Architecture
//
// The serve command initializes components in the following order:
//
//  1. Configuration: defaults, config.yaml and environment (Koanf v2)
//  2. Store: BadgerDB ledger of offenses, bans and pardons
//  3. Broker (optional): embedded NATS server for single-node deployments
//  4. Dispatcher: alert fan-out to log, WebSocket, NATS, webhook and Discord
//  5. Engine: per-subject windows, violation scoring and the tick scheduler
//  6. Ingest: watermill router consuming sample and session topics
//  7. Authentication: JWT or no-auth mode
//  8. HTTP Server: staff REST API, WebSocket and Prometheus metrics
//
// Every long-running component runs under a suture supervisor tree that
// restarts it on failure.
//
// # Commands
//
//	vigil serve                     # run the server (default)
//	vigil token --user alice --role moderator
//	vigil check-config              # validate configuration and exit
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM. The supervisor
// tree stops layers in reverse order, the HTTP server drains in-flight
// requests and the store is closed last.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
