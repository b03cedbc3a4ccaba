// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package services

import (
	"context"
)

// ContextRunner is the shape shared by websocket.Hub and
// websocket.Forwarder: block until the context is cancelled.
type ContextRunner interface {
	Run(ctx context.Context) error
}

// HubService supervises the websocket hub's select loop.
type HubService struct {
	hub ContextRunner
}

// NewHubService wraps the hub for the messaging layer.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HubService) String() string { return "websocket-hub" }

// ForwarderService supervises the bus-to-hub event forwarder. A
// restart re-subscribes to the event bus, so a crashed forwarder only
// loses events published while it was down.
type ForwarderService struct {
	fwd ContextRunner
}

// NewForwarderService wraps the forwarder for the messaging layer.
func NewForwarderService(fwd ContextRunner) *ForwarderService {
	return &ForwarderService{fwd: fwd}
}

// Serve implements suture.Service.
func (s *ForwarderService) Serve(ctx context.Context) error {
	return s.fwd.Run(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *ForwarderService) String() string { return "event-forwarder" }
