// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"
	"fmt"
	"time"
)

// StartStopper is a component with its own background goroutine.
// Satisfied by *store.GCLoop.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// StartStopService adapts Start/Stop to Serve:
//  1. Start(ctx)
//  2. wait for cancellation
//  3. Stop, which waits for the component's goroutine
type StartStopService struct {
	component StartStopper
	name      string
}

// NewStartStopService wraps component under name.
func NewStartStopService(component StartStopper, name string) *StartStopService {
	return &StartStopService{component: component, name: name}
}

// NewStoreGCService wraps the store value-log GC loop.
func NewStoreGCService(gc StartStopper) *StartStopService {
	return NewStartStopService(gc, "store-gc")
}

// Serve implements suture.Service.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *StartStopService) String() string {
	return s.name
}

// Broker is the embedded NATS server lifecycle. Satisfied by
// *ingest.EmbeddedServer.
type Broker interface {
	Start() error
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// BrokerService supervises the embedded NATS server. Clients reconnect on
// their own while it restarts.
type BrokerService struct {
	broker          Broker
	shutdownTimeout time.Duration
	name            string
}

// NewBrokerService wraps the embedded broker.
func NewBrokerService(broker Broker, shutdownTimeout time.Duration) *BrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &BrokerService{
		broker:          broker,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-broker",
	}
}

// Serve implements suture.Service.
func (s *BrokerService) Serve(ctx context.Context) error {
	if err := s.broker.Start(); err != nil {
		return fmt.Errorf("NATS broker start failed: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.broker.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("NATS broker shutdown failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *BrokerService) String() string {
	return s.name
}
