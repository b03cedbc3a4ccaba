// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package websocket

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/events"
)

// EventSource is the subset of the event bus the forwarder consumes.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan events.Event, error)
}

// Forwarder relays engine events from the bus to the websocket hub.
type Forwarder struct {
	source EventSource
	hub    *Hub
	log    zerolog.Logger
}

// NewForwarder builds a forwarder over the given bus and hub.
func NewForwarder(source EventSource, hub *Hub, logger zerolog.Logger) *Forwarder {
	return &Forwarder{source: source, hub: hub, log: logger}
}

// Run subscribes and pumps until ctx is cancelled or the bus closes.
// Designed for suture supervision.
func (f *Forwarder) Run(ctx context.Context) error {
	ch, err := f.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing event forwarder: %w", err)
	}

	f.log.Debug().Str("component", "websocket-forwarder").Msg("Forwarding events to websocket clients")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			f.hub.BroadcastEvent(ev)
		}
	}
}
