// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package worker

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthlib/hearth/internal/logging"
)

func TestAllItemsProcessedBeforeDrainReturns(t *testing.T) {
	p := New[int](8, 4, logging.NewTestLogger(io.Discard))

	var sum atomic.Int64
	for i := 1; i <= 20; i++ {
		err := p.Enqueue(context.Background(), i, func(_ context.Context, n int) {
			sum.Add(int64(n))
		})
		if err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	p.Drain()
	if got := sum.Load(); got != 210 {
		t.Errorf("sum = %d, want 210", got)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d after drain", p.Pending())
	}
}

func TestConcurrencyCapIsRespected(t *testing.T) {
	const limit = 2
	p := New[int](16, limit, logging.NewTestLogger(io.Discard))

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	wg.Add(8)

	for i := 0; i < 8; i++ {
		err := p.Enqueue(context.Background(), i, func(context.Context, int) {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	p.Drain()

	if peak.Load() > limit {
		t.Errorf("observed %d concurrent handlers, cap is %d", peak.Load(), limit)
	}
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	p := New[int](1, 1, logging.NewTestLogger(io.Discard))
	release := make(chan struct{})

	block := func(context.Context, int) { <-release }

	// First item occupies the single worker slot; second fills the
	// queue; the third must block until cancelled.
	if err := p.Enqueue(context.Background(), 1, block); err != nil {
		t.Fatal(err)
	}
	if err := p.Enqueue(context.Background(), 2, block); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Enqueue(ctx, 3, block); err == nil {
		t.Error("Enqueue on a full queue did not block until cancellation")
	}

	close(release)
	p.Drain()
}

func TestHandlerPanicDoesNotStopPool(t *testing.T) {
	p := New[string](4, 1, logging.NewTestLogger(io.Discard))

	done := make(chan struct{})
	if err := p.Enqueue(context.Background(), "boom", func(context.Context, string) {
		panic("handler exploded")
	}); err != nil {
		t.Fatal(err)
	}
	if err := p.Enqueue(context.Background(), "after", func(context.Context, string) {
		close(done)
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped processing after a handler panic")
	}
	p.Drain()
}

func TestEnqueueAfterDrainFails(t *testing.T) {
	p := New[int](2, 1, logging.NewTestLogger(io.Discard))
	p.Drain()

	if err := p.Enqueue(context.Background(), 1, func(context.Context, int) {}); err == nil {
		t.Error("Enqueue after Drain must fail")
	}
	if got := p.Pending(); got != 0 {
		t.Errorf("pending = %d after rejected enqueue, want 0", got)
	}
}

func TestPendingCountsQueuedAndInFlight(t *testing.T) {
	p := New[int](8, 1, logging.NewTestLogger(io.Discard))
	release := make(chan struct{})

	for i := 0; i < 3; i++ {
		if err := p.Enqueue(context.Background(), i, func(context.Context, int) {
			<-release
		}); err != nil {
			t.Fatal(err)
		}
	}

	// One in flight, two queued.
	deadline := time.Now().Add(time.Second)
	for p.InFlight() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := p.Pending(); got != 3 {
		t.Errorf("pending = %d, want 3", got)
	}

	close(release)
	p.Drain()
	if p.Pending() != 0 || p.InFlight() != 0 {
		t.Errorf("counters not zero after drain: pending=%d inflight=%d", p.Pending(), p.InFlight())
	}
}
