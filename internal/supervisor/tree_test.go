// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// stubService blocks until cancelled, optionally failing its first N
// starts so restart behaviour can be observed.
type stubService struct {
	name   string
	fails  int32
	starts atomic.Int32
}

func (s *stubService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.fails {
		return errors.New("simulated crash")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func testTree(t *testing.T, cfg TreeConfig) *Tree {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTree(logger, cfg)
}

func TestTreeDefaultsForZeroConfig(t *testing.T) {
	tree := testTree(t, TreeConfig{})

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %v, want 30.0", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
	if tree.Root() == nil {
		t.Fatal("Root() returned nil")
	}
}

func TestTreeStartsServicesInAllLayers(t *testing.T) {
	tree := testTree(t, TreeConfig{ShutdownTimeout: time.Second})

	engine := &stubService{name: "stub-engine"}
	messaging := &stubService{name: "stub-messaging"}
	api := &stubService{name: "stub-api"}
	tree.AddEngineService(engine)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for engine.starts.Load() == 0 || messaging.starts.Load() == 0 || api.starts.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("services not started: engine=%d messaging=%d api=%d",
				engine.starts.Load(), messaging.starts.Load(), api.starts.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	tree := testTree(t, TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := &stubService{name: "flaky", fails: 2}
	stable := &stubService{name: "stable"}
	tree.AddEngineService(flaky)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(3 * time.Second)
	for flaky.starts.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("flaky service started %d times, want >= 3", flaky.starts.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The crashes in the engine layer must not have restarted the api
	// layer's stable service.
	if got := stable.starts.Load(); got != 1 {
		t.Errorf("stable service started %d times, want 1", got)
	}

	cancel()
	<-errCh
}
