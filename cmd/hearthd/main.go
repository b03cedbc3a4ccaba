// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package main is the hearthd entry point.
//
// The daemon assembles the kernel and runs it under a supervision
// tree:
//
//  1. Configuration: JSON file with .bak fallback, HEARTH_ env overrides
//  2. Catalogue store: SQLite with WAL and a startup integrity check
//  3. Recovery journal: BadgerDB next to the catalogue
//  4. Event bus and websocket hub for realtime change feeds
//  5. Ingest pipeline: watcher, debouncer, bounded worker pool
//  6. HTTP shell: REST API, /metrics, /ws
//
// SIGINT and SIGTERM trigger a graceful shutdown: the watcher stops,
// in-flight candidates drain, the HTTP server closes idle connections,
// then the store and journal close.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/api"
	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/enrich"
	"github.com/hearthlib/hearth/internal/events"
	"github.com/hearthlib/hearth/internal/ingest"
	"github.com/hearthlib/hearth/internal/journal"
	"github.com/hearthlib/hearth/internal/logging"
	"github.com/hearthlib/hearth/internal/metrics"
	"github.com/hearthlib/hearth/internal/organize"
	"github.com/hearthlib/hearth/internal/processor"
	"github.com/hearthlib/hearth/internal/supervisor"
	"github.com/hearthlib/hearth/internal/supervisor/services"
	"github.com/hearthlib/hearth/internal/version"
	ws "github.com/hearthlib/hearth/internal/websocket"
)

const defaultConfigPath = "/data/hearth.json"

// rescorerFunc lets the enrichment dispatcher call back into the
// orchestrator, which is constructed after the dispatcher.
type rescorerFunc func(ctx context.Context, entityID uuid.UUID) error

func (f rescorerFunc) Rescore(ctx context.Context, entityID uuid.UUID) error {
	return f(ctx, entityID)
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the JSON configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString("hearthd " + version.Version + "\n")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	log := logging.Logger()

	log.Info().
		Str("version", version.Version).
		Str("config", *configPath).
		Str("database", cfg.DatabasePath).
		Str("data_root", cfg.DataRoot).
		Str("inbox", cfg.Watch.Root).
		Msg("Starting hearthd")

	metrics.AppInfo.WithLabelValues(version.Version, runtime.Version()).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := catalog.Open(ctx, cfg.DatabasePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open catalogue store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing catalogue store")
		}
	}()

	jnlDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "hearth-journal")
	jnl, err := journal.Open(jnlDir, log)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", jnlDir).Msg("Failed to open recovery journal")
	}
	defer func() {
		if err := jnl.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing recovery journal")
		}
	}()

	bus := events.NewBus(256, log)
	defer bus.Close()

	registry := processor.NewRegistry(cfg.Worker.Concurrency)
	registry.Register(processor.NewEpub())
	organizer := organize.New(cfg.DataRoot, cfg.Organize, log)

	// The dispatcher and orchestrator reference each other: enrichment
	// rescoring goes through the orchestrator, ingestion hands finished
	// works to the dispatcher.
	var orch *ingest.Orchestrator
	dispatcher := enrich.NewDispatcher(store, rescorerFunc(func(ctx context.Context, id uuid.UUID) error {
		return orch.Rescore(ctx, id)
	}), log)
	orch = ingest.New(cfg, store, registry, organizer, jnl, bus, dispatcher, log)

	for provider, endpoint := range cfg.ProviderEndpoints {
		dispatcher.Register(enrich.NewHTTPClient(provider, endpoint, 0), enrich.Options{})
		log.Info().Str("provider", provider).Str("endpoint", endpoint).Msg("Enrichment provider registered")
	}

	hub := ws.NewHub(log)
	forwarder := ws.NewForwarder(bus, hub, log)
	server := api.NewServer(cfg, store, orch, hub, log)
	server.ConfigPath = *configPath
	server.Publisher = bus

	tree := supervisor.NewTree(logging.NewSlogLogger(log), supervisor.DefaultTreeConfig())
	tree.AddEngineService(services.NewPipeline(cfg, store, orch, log))
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewForwarderService(forwarder))
	tree.AddMessagingService(services.NewConfigReloader(*configPath, bus, orch, log))
	tree.AddAPIService(services.NewHTTPService(server))

	start := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.AppUptime.Set(time.Since(start).Seconds())
			}
		}
	}()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil {
		for _, svc := range report {
			log.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	log.Info().Msg("hearthd stopped")
}
