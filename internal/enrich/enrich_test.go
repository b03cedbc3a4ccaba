// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package enrich

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/logging"
	"github.com/hearthlib/hearth/internal/models"
)

type fakeClient struct {
	name   string
	claims []models.MetadataClaim
	err    error
	calls  int
}

func (f *fakeClient) Provider() string { return f.name }

func (f *fakeClient) Fetch(context.Context, Request) ([]models.MetadataClaim, error) {
	f.calls++
	return f.claims, f.err
}

type memSink struct {
	claims []models.MetadataClaim
	err    error
}

func (m *memSink) AppendClaim(_ context.Context, c *models.MetadataClaim) error {
	if m.err != nil {
		return m.err
	}
	m.claims = append(m.claims, *c)
	return nil
}

type countingRescorer struct {
	calls int
	last  uuid.UUID
}

func (r *countingRescorer) Rescore(_ context.Context, id uuid.UUID) error {
	r.calls++
	r.last = id
	return nil
}

func TestEnrichAppendsStampedClaims(t *testing.T) {
	sink := &memSink{}
	rescorer := &countingRescorer{}
	d := NewDispatcher(sink, rescorer, logging.NewTestLogger(io.Discard))
	d.Register(&fakeClient{
		name: "openlibrary",
		claims: []models.MetadataClaim{
			{Key: "title", Value: "Dune", Confidence: 0.9},
			{Key: "year", Value: "1965", Confidence: 0.8},
		},
	}, Options{RequestsPerSecond: 100})

	entity := uuid.New()
	stored, err := d.Enrich(context.Background(), Request{
		EntityID:   entity,
		EntityType: models.EntityTypeWork,
	})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if stored != 2 || len(sink.claims) != 2 {
		t.Fatalf("stored %d claims, want 2", stored)
	}
	for _, c := range sink.claims {
		if c.EntityID != entity || c.ProviderID != "openlibrary" || c.EntityType != models.EntityTypeWork {
			t.Errorf("claim not stamped with entity/provider: %+v", c)
		}
	}
	if rescorer.calls != 1 || rescorer.last != entity {
		t.Errorf("rescorer calls = %d (last %s), want 1 for entity", rescorer.calls, rescorer.last)
	}
}

func TestProviderFailureYieldsZeroClaims(t *testing.T) {
	sink := &memSink{}
	d := NewDispatcher(sink, nil, logging.NewTestLogger(io.Discard))
	d.Register(&fakeClient{name: "down", err: errors.New("connection refused")}, Options{RequestsPerSecond: 100})
	d.Register(&fakeClient{
		name:   "up",
		claims: []models.MetadataClaim{{Key: "title", Value: "Dune", Confidence: 0.7}},
	}, Options{RequestsPerSecond: 100})

	stored, err := d.Enrich(context.Background(), Request{EntityID: uuid.New(), EntityType: models.EntityTypeWork})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1 (failing provider skipped)", stored)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	failing := &fakeClient{name: "flaky", err: errors.New("timeout")}
	d := NewDispatcher(&memSink{}, nil, logging.NewTestLogger(io.Discard))
	d.Register(failing, Options{RequestsPerSecond: 1000, Burst: 100})

	req := Request{EntityID: uuid.New(), EntityType: models.EntityTypeWork}
	for i := 0; i < 5; i++ {
		if _, err := d.Enrich(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}

	// Breaker trips after 3 consecutive failures; later dispatches
	// fail fast without reaching the client.
	if failing.calls != 3 {
		t.Errorf("client called %d times, want 3 before breaker opened", failing.calls)
	}
}

func TestSinkFailurePropagates(t *testing.T) {
	sink := &memSink{err: errors.New("store unavailable")}
	d := NewDispatcher(sink, nil, logging.NewTestLogger(io.Discard))
	d.Register(&fakeClient{
		name:   "openlibrary",
		claims: []models.MetadataClaim{{Key: "title", Value: "Dune", Confidence: 0.9}},
	}, Options{RequestsPerSecond: 100})

	if _, err := d.Enrich(context.Background(), Request{EntityID: uuid.New()}); err == nil {
		t.Error("sink failure must propagate")
	}
}
