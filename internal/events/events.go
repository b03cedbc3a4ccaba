// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package events carries lifecycle notifications from the engine to
// subscribers (websocket hub, enrichment dispatcher). Publishing never
// fails: with zero subscribers an event is simply dropped, and a no-op
// publisher is available for headless hosts.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is one lifecycle notification.
type Event struct {
	Name       string            `json:"name"`
	EntityID   uuid.UUID         `json:"entity_id,omitempty"`
	EntityType string            `json:"entity_type,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher is the boundary the engine publishes through. Publish must
// never fail; delivery problems are logged, not surfaced.
type Publisher interface {
	Publish(ev Event)
}

// Nop discards every event. Explicitly permitted for headless hosts.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}
