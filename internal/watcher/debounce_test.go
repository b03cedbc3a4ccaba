// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package watcher

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/logging"
)

func testWatchConfig() config.WatchConfig {
	return config.WatchConfig{
		SettleDelay:      30 * time.Millisecond,
		ProbeInterval:    5 * time.Millisecond,
		MaxProbeDelay:    20 * time.Millisecond,
		MaxProbeAttempts: 3,
		QueueCapacity:    16,
	}
}

func newTestDebouncer(t *testing.T, p probe) *Debouncer {
	t.Helper()
	d := NewDebouncer(testWatchConfig(), logging.NewTestLogger(io.Discard))
	if p != nil {
		d.probe = p
	}
	t.Cleanup(d.Close)
	return d
}

func waitCandidate(t *testing.T, d *Debouncer) Candidate {
	t.Helper()
	select {
	case c := <-d.Candidates():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for candidate")
		return Candidate{}
	}
}

func TestCanonicalPath(t *testing.T) {
	a := CanonicalPath("/inbox/Dune.epub")
	b := CanonicalPath("/inbox/dune.EPUB/")
	if a != b {
		t.Errorf("canonical forms differ: %q vs %q", a, b)
	}
}

func TestBurstCoalescesToOneCandidate(t *testing.T) {
	d := newTestDebouncer(t, func(string) error { return nil })

	first := time.Now().UTC()
	for i := 0; i < 10; i++ {
		d.Enqueue(FileEvent{
			Path:       "/inbox/book.epub",
			Type:       EventModified,
			OccurredAt: first.Add(time.Duration(i) * time.Millisecond),
		})
	}

	c := waitCandidate(t, d)
	if !c.DetectedAt.Equal(first) {
		t.Errorf("DetectedAt = %v, want first event time %v", c.DetectedAt, first)
	}
	if c.ReadyAt.Before(first.Add(testWatchConfig().SettleDelay)) {
		t.Errorf("ReadyAt %v precedes first + settle delay", c.ReadyAt)
	}

	select {
	case extra := <-d.Candidates():
		t.Errorf("burst produced a second candidate: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDeletedPromotedWithoutProbe(t *testing.T) {
	probed := false
	d := newTestDebouncer(t, func(string) error {
		probed = true
		return nil
	})

	d.Enqueue(FileEvent{Path: "/inbox/gone.epub", Type: EventDeleted, OccurredAt: time.Now()})

	c := waitCandidate(t, d)
	if c.Event.Type != EventDeleted {
		t.Errorf("event type = %v, want deleted", c.Event.Type)
	}
	if probed {
		t.Error("deleted path was lock-probed")
	}
	if c.IsFailed {
		t.Error("deleted candidate flagged as failed")
	}
}

func TestProbeExhaustionEmitsFailedCandidate(t *testing.T) {
	attempts := 0
	d := newTestDebouncer(t, func(string) error {
		attempts++
		return errors.New("sharing violation")
	})

	d.Enqueue(FileEvent{Path: "/inbox/held.mkv", Type: EventCreated, OccurredAt: time.Now()})

	c := waitCandidate(t, d)
	if !c.IsFailed {
		t.Fatal("candidate not flagged failed after probe exhaustion")
	}
	if c.FailReason == "" {
		t.Error("failed candidate carries no reason")
	}
	if attempts != testWatchConfig().MaxProbeAttempts {
		t.Errorf("probe attempted %d times, want %d", attempts, testWatchConfig().MaxProbeAttempts)
	}
}

func TestProbeRetriesUntilWriterReleases(t *testing.T) {
	attempts := 0
	d := newTestDebouncer(t, func(string) error {
		attempts++
		if attempts < 2 {
			return errors.New("still writing")
		}
		return nil
	})

	d.Enqueue(FileEvent{Path: "/inbox/slow.m4b", Type: EventCreated, OccurredAt: time.Now()})

	c := waitCandidate(t, d)
	if c.IsFailed {
		t.Errorf("candidate failed despite eventual probe success: %s", c.FailReason)
	}
	if attempts != 2 {
		t.Errorf("probe attempts = %d, want 2", attempts)
	}
}

func TestDistinctPathsDoNotCoalesce(t *testing.T) {
	d := newTestDebouncer(t, func(string) error { return nil })

	d.Enqueue(FileEvent{Path: "/inbox/a.epub", Type: EventCreated, OccurredAt: time.Now()})
	d.Enqueue(FileEvent{Path: "/inbox/b.epub", Type: EventCreated, OccurredAt: time.Now()})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[waitCandidate(t, d).Path] = true
	}
	if !seen["/inbox/a.epub"] || !seen["/inbox/b.epub"] {
		t.Errorf("missing candidates: %v", seen)
	}
}
