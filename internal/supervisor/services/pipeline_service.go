// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/ingest"
	"github.com/hearthlib/hearth/internal/metrics"
	"github.com/hearthlib/hearth/internal/organize"
	"github.com/hearthlib/hearth/internal/watcher"
	"github.com/hearthlib/hearth/internal/worker"
)

// Pipeline is the supervised ingestion engine. Each Serve call runs
// recovery (log pruning, optional vacuum, sidecar rebuild of an empty
// catalogue, journal replay, differential scan) and then consumes
// settled candidates from the inbox watcher until the context is
// cancelled.
//
// The watcher, debouncer and worker pool are built inside Serve so a
// supervisor restart gets fresh instances; recovery is idempotent and
// safe to repeat.
type Pipeline struct {
	cfg   *config.Config
	store *catalog.Store
	orch  *ingest.Orchestrator
	log   zerolog.Logger
}

// NewPipeline wires the engine service.
func NewPipeline(cfg *config.Config, store *catalog.Store, orch *ingest.Orchestrator, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, orch: orch, log: logger}
}

// Serve implements suture.Service.
func (p *Pipeline) Serve(ctx context.Context) error {
	if err := p.housekeep(ctx); err != nil {
		return err
	}
	if err := p.rebuildIfEmpty(ctx); err != nil {
		return err
	}

	deb := watcher.NewDebouncer(p.cfg.Watch, p.log)
	defer deb.Close()

	handler := func(ev watcher.FileEvent) {
		metrics.WatchEventsTotal.WithLabelValues(ev.Type.String()).Inc()
		deb.Enqueue(ev)
	}
	errSink := func(err error) {
		p.log.Warn().Err(err).Msg("Watcher error")
	}

	w, err := watcher.New(handler, errSink, p.log)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Watch(p.cfg.Watch.Root); err != nil {
		return fmt.Errorf("watching %s: %w", p.cfg.Watch.Root, err)
	}

	pool := worker.New[watcher.Candidate](p.cfg.Worker.QueueCapacity, p.cfg.Worker.Concurrency, p.log)
	defer pool.Drain()

	handle := func(ctx context.Context, cand watcher.Candidate) {
		p.ingestOne(ctx, cand)
		metrics.CandidatesQueued.Set(float64(pool.Pending()))
	}
	enqueue := func(cand watcher.Candidate) {
		if err := pool.Enqueue(ctx, cand, handle); err != nil {
			p.log.Warn().Err(err).Str("path", cand.Path).Msg("Dropped candidate")
			return
		}
		metrics.CandidatesQueued.Set(float64(pool.Pending()))
	}

	if err := p.recoverBacklog(ctx, enqueue); err != nil {
		return err
	}

	p.log.Info().Str("root", p.cfg.Watch.Root).Msg("Ingest pipeline watching")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cand, ok := <-deb.Candidates():
			if !ok {
				return nil
			}
			enqueue(cand)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (p *Pipeline) String() string { return "ingest-pipeline" }

// housekeep prunes the transaction log and optionally vacuums the
// store before any new writes land.
func (p *Pipeline) housekeep(ctx context.Context) error {
	if err := p.store.PruneLog(ctx, p.cfg.Maintenance.MaxTransactionLogEntries); err != nil {
		return fmt.Errorf("pruning transaction log: %w", err)
	}
	if p.cfg.Maintenance.VacuumOnStartup {
		if err := p.store.Vacuum(ctx); err != nil {
			return fmt.Errorf("vacuuming store: %w", err)
		}
		p.log.Info().Msg("Store vacuumed")
	}
	return nil
}

// rebuildIfEmpty runs the great inhale when the catalogue holds no
// hubs but the organised library on disk survives: the store file was
// lost or replaced, and the sidecars carry enough to rebuild it.
func (p *Pipeline) rebuildIfEmpty(ctx context.Context) error {
	hubs, err := p.store.ListHubs(ctx)
	if err != nil {
		return fmt.Errorf("checking catalogue: %w", err)
	}
	if len(hubs) > 0 {
		return nil
	}
	if _, err := os.Stat(p.cfg.DataRoot); err != nil {
		// First boot: no library yet, nothing to inhale.
		return nil
	}

	stats, err := organize.NewInhaler(p.store, p.log).Rebuild(ctx, p.cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("rebuilding catalogue from sidecars: %w", err)
	}
	if stats.AssetsRestored > 0 {
		p.log.Info().Int("restored", stats.AssetsRestored).Msg("Catalogue rebuilt from sidecars")
	}
	return nil
}

// recoverBacklog replays journalled failures, then walks the watch
// root so files dropped while the daemon was down are picked up.
func (p *Pipeline) recoverBacklog(ctx context.Context, enqueue func(watcher.Candidate)) error {
	replayed, err := p.orch.ReplayJournal(ctx, enqueue)
	if err != nil {
		return fmt.Errorf("replaying journal: %w", err)
	}
	if replayed > 0 {
		p.log.Info().Int("entries", replayed).Msg("Journal entries replayed")
	}
	metrics.JournalPending.Set(float64(replayed))

	stats, err := p.orch.Scan(ctx, p.cfg.Watch.Root, false, enqueue)
	if err != nil {
		return fmt.Errorf("differential scan: %w", err)
	}
	p.log.Info().
		Int("files_seen", stats.FilesSeen).
		Int("known", stats.Known).
		Int("new", len(stats.NewPaths)).
		Int("errors", stats.Errors).
		Msg("Differential scan complete")
	return nil
}

// ingestOne is the worker pool handler for a single candidate.
func (p *Pipeline) ingestOne(ctx context.Context, cand watcher.Candidate) {
	start := time.Now()
	out, err := p.orch.Ingest(ctx, cand)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.RecordIngest("error", time.Since(start))
		p.log.Error().Err(err).Str("path", cand.Path).Msg("Ingestion failed")
		return
	}

	metrics.RecordIngest(strings.ToLower(string(out.State)), time.Since(start))
	switch out.State {
	case ingest.StateSkipped:
		if out.Reason == "duplicate content hash" {
			metrics.DuplicatesSkipped.Inc()
		}
	case ingest.StateRejected:
		metrics.CorruptQuarantined.Inc()
	}

	p.log.Info().
		Str("path", cand.Path).
		Str("state", string(out.State)).
		Str("reason", out.Reason).
		Str("organized", out.Organized).
		Dur("elapsed", time.Since(start)).
		Msg("Candidate processed")
}
