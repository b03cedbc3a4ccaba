// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/events"
	"github.com/hearthlib/hearth/internal/models"
)

// EventSource is the subset of the event bus the reloader consumes.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan events.Event, error)
}

// WeightApplier receives the re-read provider weights. Satisfied by
// the ingestion orchestrator.
type WeightApplier interface {
	ApplyProviderWeights(weights map[string]float64, fieldWeights map[string]map[string]float64)
}

// ConfigReloader re-reads the configuration file whenever a
// config-changed event arrives and pushes the new provider weights
// into the scoring path. Structural settings still require a restart.
type ConfigReloader struct {
	path    string
	source  EventSource
	applier WeightApplier
	log     zerolog.Logger
}

// NewConfigReloader wires the reloader for the messaging layer.
func NewConfigReloader(path string, source EventSource, applier WeightApplier, logger zerolog.Logger) *ConfigReloader {
	return &ConfigReloader{path: path, source: source, applier: applier, log: logger}
}

// Serve implements suture.Service. A restart re-subscribes to the bus.
func (s *ConfigReloader) Serve(ctx context.Context) error {
	ch, err := s.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing config reloader: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Name != models.EventConfigChanged {
				continue
			}
			s.reload(ctx)
		}
	}
}

func (s *ConfigReloader) reload(_ context.Context) {
	cfg, err := config.Load(s.path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("Config changed but reload failed; keeping previous weights")
		return
	}
	weights, fieldWeights := cfg.ProviderWeights()
	s.applier.ApplyProviderWeights(weights, fieldWeights)
	s.log.Info().Int("providers", len(weights)).Msg("Provider weights reloaded")
}

// String implements fmt.Stringer for supervisor logging.
func (s *ConfigReloader) String() string { return "config-reloader" }
