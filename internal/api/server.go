// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/events"
	"github.com/hearthlib/hearth/internal/ingest"
	"github.com/hearthlib/hearth/internal/websocket"
)

// Server is the HTTP shell over the engine.
type Server struct {
	cfg   *config.Config
	store *catalog.Store
	orch  *ingest.Orchestrator
	hub   *websocket.Hub
	log   zerolog.Logger

	// ConfigPath enables PUT /system/config when set: the uploaded
	// document is persisted there with .bak rotation. Empty leaves the
	// endpoint unregistered.
	ConfigPath string

	// Publisher announces config changes on the event bus. Defaults to
	// events.Nop.
	Publisher events.Publisher
}

// NewServer wires the HTTP surface. hub may be nil for headless hosts,
// in which case the websocket endpoint responds 503.
func NewServer(cfg *config.Config, store *catalog.Store, orch *ingest.Orchestrator, hub *websocket.Hub, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, store: store, orch: orch, hub: hub, log: logger, Publisher: events.Nop{}}
}

// Routes assembles the router. Status and metrics stay public; the
// catalogue endpoints sit behind bearer auth when a secret is set.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(s.cfg.Server.CORSOrigins))

	r.Group(func(r chi.Router) {
		r.Use(securityHeaders)
		r.Get("/api/v1/system/status", s.handleSystemStatus)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.Server.RateLimitReqs, s.cfg.Server.RateLimitWindow))
		r.Use(securityHeaders)
		r.Use(recordMetrics)
		r.Use(authenticate(s.cfg.Server.AuthSecret))

		r.Get("/hubs", s.handleListHubs)
		r.Get("/hubs/search", s.handleSearchHubs)
		r.Post("/ingestion/scan", s.handleScan)
		r.Patch("/metadata/resolve", s.handleResolveMetadata)
		r.Patch("/metadata/lock-claim", s.handleLockClaim)
		r.Get("/ws", s.handleWebsocket)
		if s.ConfigPath != "" {
			r.Put("/system/config", s.handleUpdateConfig)
		}
	})

	return r
}

// Run serves until ctx is cancelled, then drains with the configured
// timeout. Designed for suture supervision.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.Timeout,
		WriteTimeout:      s.cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.Timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
