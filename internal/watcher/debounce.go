// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/config"
)

// probe opens a path with shared-read access to detect an active
// writer. Swapped in tests.
type probe func(path string) error

// Debouncer coalesces bursts of events per canonical path and emits at
// most one candidate once the path has settled and passed a lock probe.
//
// For every incoming event the previous settle task for that path is
// cancelled and a fresh one started, so only the most recent event
// survives a burst. The output channel is bounded; a full channel
// blocks the emitting settle task (back-pressure upstream).
type Debouncer struct {
	cfg   config.WatchConfig
	log   zerolog.Logger
	out   chan Candidate
	probe probe

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	states map[string]*pathState
}

type pathState struct {
	latest    FileEvent
	firstSeen time.Time
	gen       uint64
	cancel    context.CancelFunc
}

// NewDebouncer builds a debouncer with the given tuning. Candidates
// appear on Candidates() until Close.
func NewDebouncer(cfg config.WatchConfig, logger zerolog.Logger) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		cfg:    cfg,
		log:    logger,
		out:    make(chan Candidate, cfg.QueueCapacity),
		probe:  openProbe,
		ctx:    ctx,
		cancel: cancel,
		states: make(map[string]*pathState),
	}
}

// Candidates is the bounded output channel consumed by the ingestion
// orchestrator.
func (d *Debouncer) Candidates() <-chan Candidate {
	return d.out
}

// Enqueue records ev as the latest known event for its path and
// restarts the settle timer. Safe for concurrent use; never blocks.
func (d *Debouncer) Enqueue(ev FileEvent) {
	key := CanonicalPath(ev.Path)

	d.mu.Lock()
	st, ok := d.states[key]
	if !ok {
		st = &pathState{firstSeen: ev.OccurredAt}
		d.states[key] = st
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.latest = ev
	st.gen++
	gen := st.gen

	ctx, cancel := context.WithCancel(d.ctx)
	st.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go d.settle(ctx, key, gen)
}

// Close cancels all in-flight settle tasks, waits for them, and closes
// the output channel.
func (d *Debouncer) Close() {
	d.cancel()
	d.wg.Wait()
	close(d.out)
}

func (d *Debouncer) settle(ctx context.Context, key string, gen uint64) {
	defer d.wg.Done()

	timer := time.NewTimer(d.cfg.SettleDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return // superseded or shutting down
	case <-timer.C:
	}

	d.mu.Lock()
	st := d.states[key]
	if st == nil || st.gen != gen {
		d.mu.Unlock()
		return
	}
	ev := st.latest
	first := st.firstSeen
	d.mu.Unlock()

	cand := Candidate{
		Path:       ev.Path,
		Event:      ev,
		DetectedAt: first,
	}

	// A deleted or renamed-away path cannot be probed: the file is
	// gone. Promote immediately so the orchestrator can react.
	if ev.Type != EventDeleted && ev.Type != EventRenamed {
		if err := d.probeWithBackoff(ctx, ev.Path); err != nil {
			if ctx.Err() != nil {
				return // superseded while probing
			}
			cand.IsFailed = true
			cand.FailReason = err.Error()
			d.log.Warn().Str("path", ev.Path).Err(err).Msg("Lock probe exhausted")
		}
	}
	cand.ReadyAt = time.Now().UTC()

	d.mu.Lock()
	if st := d.states[key]; st != nil && st.gen == gen {
		delete(d.states, key)
	} else {
		// A newer event arrived after the probe succeeded; its own
		// settle task owns the path now.
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	select {
	case d.out <- cand:
	case <-ctx.Done():
	}
}

// probeWithBackoff retries the shared-read probe with exponential
// delays: probe_interval × 2^(n-1), capped at max_probe_delay, up to
// max_probe_attempts.
func (d *Debouncer) probeWithBackoff(ctx context.Context, path string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.ProbeInterval
	bo.MaxInterval = d.cfg.MaxProbeDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempts := uint64(d.cfg.MaxProbeAttempts)
	if attempts > 0 {
		attempts--
	}

	op := func() error { return d.probe(path) }
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, attempts), ctx)); err != nil {
		return fmt.Errorf("file locked after %d probes: %w", d.cfg.MaxProbeAttempts, err)
	}
	return nil
}

func openProbe(path string) error {
	f, err := sharedOpen(path)
	if err != nil {
		return err
	}
	return f.Close()
}
