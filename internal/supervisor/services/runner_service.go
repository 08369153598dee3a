// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"
)

// ContextRunner runs until its context is canceled. Satisfied by
// *detection.Engine and *websocket.Hub.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// Runner is the Run(ctx) form used by *detection.Dispatcher and
// *ingest.Router.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// runnerService delegates Serve to a Runner.
type runnerService struct {
	runner Runner
	name   string
}

// Serve implements suture.Service.
func (s *runnerService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer.
func (s *runnerService) String() string {
	return s.name
}

// EngineService supervises the detection tick loop. Pending ledger writes
// are flushed by Engine.Close, not on restart.
type EngineService struct {
	runnerService
}

// NewEngineService wraps the engine tick loop.
func NewEngineService(engine ContextRunner) *EngineService {
	return &EngineService{runnerService{runner: RunnerFunc(engine.RunWithContext), name: "detection-engine"}}
}

// WebSocketHubService supervises the staff alert hub. The hub closes its
// clients when the context ends.
type WebSocketHubService struct {
	runnerService
}

// NewWebSocketHubService wraps the websocket hub.
func NewWebSocketHubService(hub ContextRunner) *WebSocketHubService {
	return &WebSocketHubService{runnerService{runner: RunnerFunc(hub.RunWithContext), name: "websocket-hub"}}
}

// DispatcherService supervises the alert delivery workers. Alerts queued
// when it stops are delivered after the restart.
type DispatcherService struct {
	runnerService
}

// NewDispatcherService wraps the alert dispatcher.
func NewDispatcherService(dispatcher Runner) *DispatcherService {
	return &DispatcherService{runnerService{runner: dispatcher, name: "alert-dispatcher"}}
}

// IngestService supervises the watermill router. A broker outage ends Run
// with an error and suture reconnects through a fresh router.
type IngestService struct {
	runnerService
}

// NewIngestService wraps the ingest router.
func NewIngestService(router Runner) *IngestService {
	return &IngestService{runnerService{runner: router, name: "ingest-router"}}
}
