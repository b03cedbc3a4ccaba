// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/events"
	"github.com/hearthlib/hearth/internal/logging"
)

func TestForwarderRelaysBusEvents(t *testing.T) {
	log := logging.NewTestLogger(io.Discard)
	bus := events.NewBus(16, log)
	defer bus.Close()

	hub, cancel, done := testHub(t)
	defer cancel()

	client := fakeClient(hub, 8)
	hub.Register <- client
	waitForClients(t, hub, 1)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	fwd := NewForwarder(bus, hub, log)
	fwdDone := make(chan error, 1)
	go func() { fwdDone <- fwd.Run(ctx) }()

	// Give the subscription time to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	ev := events.Event{Name: "HUB_CREATED", EntityID: uuid.New(), EntityType: "hub"}
	bus.Publish(ev)

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeEvent {
			t.Fatalf("message type = %q, want %q", msg.Type, MessageTypeEvent)
		}
		got, ok := msg.Data.(events.Event)
		if !ok {
			t.Fatalf("message data type = %T, want events.Event", msg.Data)
		}
		if got.Name != ev.Name || got.EntityID != ev.EntityID {
			t.Fatalf("got event %+v, want %+v", got, ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client did not receive forwarded event")
	}

	stop()
	if err := <-fwdDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	cancel()
	<-done
}

func TestForwarderStopsWhenBusCloses(t *testing.T) {
	log := logging.NewTestLogger(io.Discard)
	bus := events.NewBus(16, log)

	hub, cancel, done := testHub(t)
	defer cancel()

	fwd := NewForwarder(bus, hub, log)
	fwdDone := make(chan error, 1)
	go func() { fwdDone <- fwd.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	if err := bus.Close(); err != nil {
		t.Fatalf("closing bus: %v", err)
	}

	select {
	case err := <-fwdDone:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop after bus close")
	}

	cancel()
	<-done
}
