// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package worker provides the bounded, back-pressured task pool that
// drives ingestion. A bounded channel feeds a consumer loop; a weighted
// semaphore caps how many handlers run at once.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Handler processes one queued item. A panic inside a handler is
// recovered and logged; it never stops the pool.
type Handler[T any] func(ctx context.Context, item T)

// Pool is a bounded worker pool for items of type T.
type Pool[T any] struct {
	log zerolog.Logger

	queue chan task[T]
	sem   *semaphore.Weighted

	pending  atomic.Int64
	inFlight atomic.Int64

	closeOnce sync.Once
	loopDone  chan struct{}
	tasks     sync.WaitGroup
}

type task[T any] struct {
	item    T
	handler Handler[T]
}

// New creates a pool with the given queue capacity and concurrency cap.
// Concurrency <= 0 defaults to the host's CPU count.
func New[T any](queueCapacity, concurrency int, logger zerolog.Logger) *Pool[T] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	p := &Pool[T]{
		log:      logger,
		queue:    make(chan task[T], queueCapacity),
		sem:      semaphore.NewWeighted(int64(concurrency)),
		loopDone: make(chan struct{}),
	}
	go p.consume()
	return p
}

// Enqueue submits an item. It blocks when the queue is full
// (back-pressure) and returns the context's error if cancelled while
// waiting. Enqueueing after Drain is an error.
func (p *Pool[T]) Enqueue(ctx context.Context, item T, handler Handler[T]) (err error) {
	defer func() {
		if recover() != nil {
			p.pending.Add(-1)
			err = fmt.Errorf("worker pool is draining")
		}
	}()

	p.pending.Add(1)
	select {
	case p.queue <- task[T]{item: item, handler: handler}:
		return nil
	case <-ctx.Done():
		p.pending.Add(-1)
		return ctx.Err()
	}
}

// Pending reports queued plus in-flight items.
func (p *Pool[T]) Pending() int64 {
	return p.pending.Load()
}

// InFlight reports handlers currently executing.
func (p *Pool[T]) InFlight() int64 {
	return p.inFlight.Load()
}

// Drain closes the queue, waits for the consumer loop to empty it, then
// waits for all in-flight handlers to finish.
func (p *Pool[T]) Drain() {
	p.closeOnce.Do(func() { close(p.queue) })
	<-p.loopDone
	p.tasks.Wait()
}

func (p *Pool[T]) consume() {
	defer close(p.loopDone)

	for t := range p.queue {
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			// Only fails on context cancellation, which Background
			// never does.
			p.pending.Add(-1)
			continue
		}
		p.tasks.Add(1)
		go p.run(t)
	}
}

func (p *Pool[T]) run(t task[T]) {
	defer p.tasks.Done()
	defer p.sem.Release(1)
	defer p.pending.Add(-1)

	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Worker handler panicked")
		}
	}()

	t.handler(context.Background(), t.item)
}
