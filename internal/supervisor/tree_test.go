// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// flakyService fails failures times and then runs until canceled.
type flakyService struct {
	name     string
	failures int32
	starts   atomic.Int32
	running  chan struct{}
}

func newFlakyService(name string, failures int32) *flakyService {
	return &flakyService{name: name, failures: failures, running: make(chan struct{})}
}

func (s *flakyService) Serve(ctx context.Context) error {
	if s.starts.Add(1) <= s.failures {
		return errors.New("simulated failure")
	}
	select {
	case <-s.running:
	default:
		close(s.running)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *flakyService) String() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree: %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("nil root")
	}
	if got := tree.Config(); got != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", got)
	}

	custom := TreeConfig{FailureThreshold: 2, FailureBackoff: time.Second}
	tree, _ = NewSupervisorTree(testLogger(), custom)
	if tree.Config().FailureThreshold != 2 || tree.Config().FailureBackoff != time.Second {
		t.Errorf("custom values lost: %+v", tree.Config())
	}
	if tree.Config().ShutdownTimeout != DefaultTreeConfig().ShutdownTimeout {
		t.Errorf("zero field not defaulted: %+v", tree.Config())
	}
}

func TestSupervisorTreeRunsEveryLayer(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewSupervisorTree: %v", err)
	}

	svcs := []*flakyService{
		newFlakyService("broker", 0),
		newFlakyService("engine", 0),
		newFlakyService("ingest", 2),
		newFlakyService("http", 0),
	}
	tree.AddDataService(svcs[0])
	tree.AddEngineService(svcs[1])
	tree.AddMessagingService(svcs[2])
	tree.AddAPIService(svcs[3])

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range svcs {
		select {
		case <-svc.running:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s never reached running", svc.name)
		}
	}
	if got := svcs[2].starts.Load(); got != 3 {
		t.Errorf("ingest started %d times, want 3 (two failures then success)", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport: %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}
