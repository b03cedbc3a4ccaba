// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig tunes restart behaviour for every supervisor in the tree.
// Zero values are replaced by suture's defaults.
type TreeConfig struct {
	// FailureThreshold is the failure count that triggers backoff.
	FailureThreshold float64

	// FailureDecay is the half-life of the failure counter in seconds.
	FailureDecay float64

	// FailureBackoff is how long restarts pause once the threshold is
	// exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a service may take to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig mirrors suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the hierarchical supervisor for the kernel. The engine,
// messaging and api layers fail independently; see the package
// documentation for the layout.
type Tree struct {
	root      *suture.Supervisor
	engine    *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
	config    TreeConfig
}

// NewTree builds the three-layer tree. The slog logger feeds the
// sutureslog event hook, which records service starts, failures and
// backoff transitions.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	rootSpec := suture.Spec{
		EventHook:        hook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Children inherit the root's event hook when added.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("hearth", rootSpec)
	engine := suture.New("engine-layer", childSpec)
	messaging := suture.New("messaging-layer", childSpec)
	api := suture.New("api-layer", childSpec)

	root.Add(engine)
	root.Add(messaging)
	root.Add(api)

	return &Tree{
		root:      root,
		engine:    engine,
		messaging: messaging,
		api:       api,
		config:    config,
	}
}

// Root exposes the root supervisor.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// AddEngineService supervises a service in the engine layer.
func (t *Tree) AddEngineService(svc suture.Service) suture.ServiceToken {
	return t.engine.Add(svc)
}

// AddMessagingService supervises a service in the messaging layer.
func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService supervises a service in the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve starts the tree and blocks until the context is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a goroutine. The returned channel
// yields the terminal error once the tree stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown
// timeout. Used by the daemon to log stragglers before exiting.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
