// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package services

import (
	"context"
)

// HTTPServer matches api.Server's Run method. Run binds the listener,
// serves until the context is cancelled, then drains connections.
type HTTPServer interface {
	Run(ctx context.Context) error
}

// HTTPService supervises the REST and websocket shell.
type HTTPService struct {
	server HTTPServer
}

// NewHTTPService wraps an HTTP server for the api layer.
func NewHTTPService(server HTTPServer) *HTTPService {
	return &HTTPService{server: server}
}

// Serve implements suture.Service. Run already handles graceful
// shutdown internally, so this is a straight delegation.
func (s *HTTPService) Serve(ctx context.Context) error {
	return s.server.Run(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HTTPService) String() string { return "http-server" }
