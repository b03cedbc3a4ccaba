// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package websocket pushes engine lifecycle events to connected
// dashboard clients. The hub owns the client set; per-connection pumps
// live in Client.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/events"
)

// Message types pushed over the wire.
const (
	MessageTypeEvent = "event"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is one frame exchanged with a client.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        logger,
	}
}

// Run drives the hub until ctx is cancelled, then closes every client
// and returns ctx.Err(). Designed for suture supervision.
//
// Selection is priority-ordered — shutdown, then client lifecycle, then
// broadcast — so client state is always consistent before a message
// fans out. Go's select picks randomly among ready channels; the
// staged non-blocking checks remove that nondeterminism.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// BroadcastEvent fans an engine event out to every client. A full
// broadcast channel drops the message rather than stalling the caller.
func (h *Hub) BroadcastEvent(ev events.Event) {
	select {
	case h.broadcast <- Message{Type: MessageTypeEvent, Data: ev}:
	default:
		h.log.Warn().Str("event", ev.Name).Msg("Broadcast channel full, dropping event")
	}
}

// ClientCount reports currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("total_clients", total).Msg("Websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("total_clients", total).Msg("Websocket client disconnected")
}

// broadcastToClients delivers in ascending client-id order so delivery
// order is reproducible. Clients whose send buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	h.log.Info().
		Str("component", "websocket-hub").
		Str("reason", ctx.Err().Error()).
		Int("clients_closed", len(clients)).
		Msg("Websocket hub stopped")
}
