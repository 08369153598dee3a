// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/vigil/internal/logging"
)

// ServerConfig configures the embedded NATS server used by single-instance
// deployments where the game server has no broker of its own.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	// Port -1 picks a random free port.
	Port int `koanf:"port" validate:"gte=-1,lte=65535"`

	JetStream bool   `koanf:"jetstream"`
	StoreDir  string `koanf:"store_dir"`
	MaxMemory int64  `koanf:"max_memory" validate:"gte=0"`
	MaxStore  int64  `koanf:"max_store" validate:"gte=0"`

	MaxPayload   int32         `koanf:"max_payload" validate:"gte=0"`
	ReadyTimeout time.Duration `koanf:"ready_timeout" validate:"gte=0"`
}

// DefaultServerConfig returns the embedded server defaults. The server is
// off unless enabled.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         4222,
		StoreDir:     "/data/nats/jetstream",
		MaxMemory:    256 << 20,
		MaxStore:     1 << 30,
		MaxPayload:   1 << 20,
		ReadyTimeout: 10 * time.Second,
	}
}

// ErrServerNotReady is returned when the embedded server does not accept
// connections within its ready timeout.
var ErrServerNotReady = errors.New("NATS server not ready within timeout")

// EmbeddedServer runs an in-process NATS server. Start may be called again
// after Shutdown; each start builds a fresh server.
type EmbeddedServer struct {
	cfg ServerConfig

	mu        sync.Mutex
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates an embedded server. It does not listen until
// Start is called.
func NewEmbeddedServer(cfg ServerConfig) *EmbeddedServer {
	return &EmbeddedServer{cfg: cfg}
}

// Start launches the server and waits until it accepts connections.
func (s *EmbeddedServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil && s.server.Running() {
		return nil
	}

	opts := &server.Options{
		ServerName: "vigil-broker",
		Host:       s.cfg.Host,
		Port:       s.cfg.Port,
		MaxPayload: s.cfg.MaxPayload,
		NoSigs:     true,
	}
	if s.cfg.JetStream {
		opts.JetStream = true
		opts.StoreDir = s.cfg.StoreDir
		opts.JetStreamMaxMemory = s.cfg.MaxMemory
		opts.JetStreamMaxStore = s.cfg.MaxStore
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()

	timeout := s.cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if !ns.ReadyForConnections(timeout) {
		ns.Shutdown()
		return ErrServerNotReady
	}

	s.server = ns
	s.clientURL = ns.ClientURL()

	logging.Info().
		Str("url", s.clientURL).
		Bool("jetstream", ns.JetStreamEnabled()).
		Msg("embedded NATS server started")
	return nil
}

// ClientURL returns the connection URL of the running server.
func (s *EmbeddedServer) ClientURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientURL
}

// Shutdown stops the server and waits for it to exit or ctx to end.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ns := s.server
	s.server = nil
	s.mu.Unlock()

	if ns == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		ns.Shutdown()
		ns.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the server is accepting connections.
func (s *EmbeddedServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil && s.server.Running()
}

// String implements fmt.Stringer.
func (s *EmbeddedServer) String() string {
	return "nats-server"
}
