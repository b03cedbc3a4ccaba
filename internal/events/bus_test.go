// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package events

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/logging"
	"github.com/hearthlib/hearth/internal/models"
)

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := NewBus(4, logging.NewTestLogger(io.Discard))
	defer func() { _ = b.Close() }()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Name: models.EventMediaAdded})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with zero subscribers")
	}
}

func TestSubscriberReceivesPublishedEvent(t *testing.T) {
	b := NewBus(4, logging.NewTestLogger(io.Discard))
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	id := uuid.New()
	b.Publish(Event{
		Name:       models.EventWorkAutoLinked,
		EntityID:   id,
		EntityType: "work",
		Detail:     map[string]string{"hub_id": uuid.NewString()},
	})

	select {
	case ev := <-sub:
		if ev.Name != models.EventWorkAutoLinked {
			t.Errorf("event name = %q", ev.Name)
		}
		if ev.EntityID != id {
			t.Errorf("entity id = %s, want %s", ev.EntityID, id)
		}
		if ev.OccurredAt.IsZero() {
			t.Error("occurred_at not stamped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber received nothing")
	}
}

func TestAllSubscribersReceiveBroadcast(t *testing.T) {
	b := NewBus(4, logging.NewTestLogger(io.Discard))
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var subs []<-chan Event
	for i := 0; i < 3; i++ {
		sub, err := b.Subscribe(ctx)
		if err != nil {
			t.Fatal(err)
		}
		subs = append(subs, sub)
	}

	b.Publish(Event{Name: models.EventDuplicateSkipped})

	for i, sub := range subs {
		select {
		case ev := <-sub:
			if ev.Name != models.EventDuplicateSkipped {
				t.Errorf("subscriber %d got %q", i, ev.Name)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestNopPublisherAcceptsEverything(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(Event{Name: models.EventAssetCorrupt})
}
