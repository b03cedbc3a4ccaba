// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package enrich dispatches entities to external metadata providers
// after local ingestion. Provider clients live behind an interface;
// this package owns the resilience wrapper: a circuit breaker and a
// rate limiter per provider. Enrichment failures never block or fail
// ingestion, they just yield zero claims.
package enrich

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hearthlib/hearth/internal/metrics"
	"github.com/hearthlib/hearth/internal/models"
)

// Request asks providers for additional claims about one entity.
// Canonical carries the entity's current canonical values so providers
// can search by title, identifiers, and so on.
type Request struct {
	EntityID   uuid.UUID
	EntityType models.EntityType
	MediaType  models.MediaType
	Canonical  map[string]string
}

// Client is one external metadata provider. Fetch returns claims the
// provider asserts about the entity; an empty slice is a valid answer.
type Client interface {
	Provider() string
	Fetch(ctx context.Context, req Request) ([]models.MetadataClaim, error)
}

// ClaimSink receives provider claims. Satisfied by catalog.Store.
type ClaimSink interface {
	AppendClaim(ctx context.Context, claim *models.MetadataClaim) error
}

// Rescorer is invoked after new claims land so canonical values catch
// up. Satisfied by the ingestion orchestrator.
type Rescorer interface {
	Rescore(ctx context.Context, entityID uuid.UUID) error
}

// clientState couples a provider client with its breaker and limiter.
type clientState struct {
	client  Client
	breaker *gobreaker.CircuitBreaker[[]models.MetadataClaim]
	limiter *rate.Limiter
}

// Options tunes the per-provider resilience wrapper.
type Options struct {
	// RequestsPerSecond caps calls per provider. Zero means 1 rps.
	RequestsPerSecond float64
	// Burst is the limiter burst size. Zero means 1.
	Burst int
	// BreakerTimeout is how long an opened breaker stays open.
	// Zero means 60s (the gobreaker default).
	BreakerTimeout time.Duration
}

// Dispatcher fans one enrichment request out to every registered
// provider sequentially, appending whatever claims come back.
type Dispatcher struct {
	sink     ClaimSink
	rescorer Rescorer
	clients  []clientState
	log      zerolog.Logger
}

// NewDispatcher wires the sink and rescorer; providers are added with
// Register.
func NewDispatcher(sink ClaimSink, rescorer Rescorer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, rescorer: rescorer, log: logger}
}

// Register adds a provider client wrapped in its own breaker and
// limiter. Repeated failures open the breaker; further calls fail fast
// until the timeout elapses.
func (d *Dispatcher) Register(c Client, opts Options) {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	settings := gobreaker.Settings{
		Name:    c.Provider(),
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, to.String())
			d.log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Enrichment breaker state changed")
		},
	}

	d.clients = append(d.clients, clientState{
		client:  c,
		breaker: gobreaker.NewCircuitBreaker[[]models.MetadataClaim](settings),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	})
}

// Enrich queries every registered provider for the entity and appends
// the returned claims. Per-provider failures are logged and skipped;
// Enrich itself only fails when the claim sink does. Returns the number
// of claims stored.
func (d *Dispatcher) Enrich(ctx context.Context, req Request) (int, error) {
	stored := 0

	for _, cs := range d.clients {
		claims, err := d.fetch(ctx, cs, req)
		if err != nil {
			metrics.RecordEnrichment(cs.client.Provider(), "failure")
			d.log.Warn().
				Err(err).
				Str("provider", cs.client.Provider()).
				Str("entity_id", req.EntityID.String()).
				Msg("Provider enrichment failed")
			continue
		}
		metrics.RecordEnrichment(cs.client.Provider(), "success")

		for i := range claims {
			claims[i].EntityID = req.EntityID
			claims[i].EntityType = req.EntityType
			claims[i].ProviderID = cs.client.Provider()
			if err := d.sink.AppendClaim(ctx, &claims[i]); err != nil {
				return stored, err
			}
			stored++
		}
	}

	if stored > 0 && d.rescorer != nil {
		if err := d.rescorer.Rescore(ctx, req.EntityID); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

func (d *Dispatcher) fetch(ctx context.Context, cs clientState, req Request) ([]models.MetadataClaim, error) {
	if err := cs.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return cs.breaker.Execute(func() ([]models.MetadataClaim, error) {
		return cs.client.Fetch(ctx, req)
	})
}
