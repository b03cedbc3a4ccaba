// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package config provides configuration management for the engine.
//
// Configuration lives in a single JSON document. Loading is layered:
//
//  1. Built-in defaults
//  2. The primary JSON file (or its .bak fallback)
//  3. Environment variables with the HEARTH_ prefix
//
// Saving rotates the primary file to .bak before overwriting so a torn write
// never destroys the last known-good configuration.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// CurrentSchemaVersion is written into freshly created configuration files.
const CurrentSchemaVersion = 3

// ProviderDomain scopes a metadata provider to a media family.
type ProviderDomain string

const (
	DomainEbook     ProviderDomain = "Ebook"
	DomainAudiobook ProviderDomain = "Audiobook"
	DomainVideo     ProviderDomain = "Video"
	DomainUniversal ProviderDomain = "Universal"
)

// ProviderConfig describes one registered metadata provider and its voting
// weights. FieldWeights overrides Weight for individual claim keys.
type ProviderConfig struct {
	Name           string             `koanf:"name" json:"name" validate:"required"`
	Version        string             `koanf:"version" json:"version"`
	Enabled        bool               `koanf:"enabled" json:"enabled"`
	Weight         float64            `koanf:"weight" json:"weight" validate:"gte=0"`
	Domain         ProviderDomain     `koanf:"domain" json:"domain" validate:"omitempty,oneof=Ebook Audiobook Video Universal"`
	CapabilityTags []string           `koanf:"capability_tags" json:"capability_tags,omitempty"`
	FieldWeights   map[string]float64 `koanf:"field_weights" json:"field_weights,omitempty"`
}

// ScoringConfig holds the weighted-voter thresholds. Zero values are replaced
// by defaults at load time so a sparse config file stays valid.
type ScoringConfig struct {
	AutoLinkThreshold     float64 `koanf:"auto_link_threshold" json:"auto_link_threshold" validate:"gte=0,lte=1"`
	ConflictThreshold     float64 `koanf:"conflict_threshold" json:"conflict_threshold" validate:"gte=0,lte=1"`
	ConflictEpsilon       float64 `koanf:"conflict_epsilon" json:"conflict_epsilon" validate:"gte=0,lte=1"`
	StaleClaimDecayDays   int     `koanf:"stale_claim_decay_days" json:"stale_claim_decay_days" validate:"gte=0"`
	StaleClaimDecayFactor float64 `koanf:"stale_claim_decay_factor" json:"stale_claim_decay_factor" validate:"gte=0,lte=1"`
}

// MaintenanceConfig bounds the transaction journal and startup housekeeping.
type MaintenanceConfig struct {
	MaxTransactionLogEntries int  `koanf:"max_transaction_log_entries" json:"max_transaction_log_entries" validate:"gt=0"`
	VacuumOnStartup          bool `koanf:"vacuum_on_startup" json:"vacuum_on_startup"`
}

// WatchConfig tunes the file watcher and debounce queue.
type WatchConfig struct {
	Root             string        `koanf:"root" json:"root"`
	SettleDelay      time.Duration `koanf:"settle_delay" json:"settle_delay"`
	ProbeInterval    time.Duration `koanf:"probe_interval" json:"probe_interval"`
	MaxProbeDelay    time.Duration `koanf:"max_probe_delay" json:"max_probe_delay"`
	MaxProbeAttempts int           `koanf:"max_probe_attempts" json:"max_probe_attempts" validate:"gt=0"`
	QueueCapacity    int           `koanf:"queue_capacity" json:"queue_capacity" validate:"gt=0"`
}

// WorkerConfig bounds the ingestion worker pool. Concurrency 0 means host
// parallelism (runtime.NumCPU).
type WorkerConfig struct {
	Concurrency   int `koanf:"concurrency" json:"concurrency" validate:"gte=0"`
	QueueCapacity int `koanf:"queue_capacity" json:"queue_capacity" validate:"gt=0"`
}

// ServerConfig configures the HTTP shell over the engine.
type ServerConfig struct {
	Host            string        `koanf:"host" json:"host"`
	Port            int           `koanf:"port" json:"port" validate:"gt=0,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" json:"timeout"`
	AuthSecret      string        `koanf:"auth_secret" json:"auth_secret"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" json:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" json:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins" json:"cors_origins"`
}

// OrganizeConfig configures the on-disk library layout.
type OrganizeConfig struct {
	Template     string `koanf:"template" json:"template"`
	MaxRenameTry int    `koanf:"max_rename_try" json:"max_rename_try" validate:"gt=0"`
}

// LoggingConfig mirrors logging.Config at the file level.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
	Caller bool   `koanf:"caller" json:"caller"`
}

// Config is the root configuration document. It is loaded once at startup and
// treated as immutable; runtime changes go through Save which re-broadcasts a
// config-changed event.
type Config struct {
	SchemaVersion     int                       `koanf:"schema_version" json:"schema_version"`
	DatabasePath      string                    `koanf:"database_path" json:"database_path" validate:"required"`
	DataRoot          string                    `koanf:"data_root" json:"data_root" validate:"required"`
	Providers         []ProviderConfig          `koanf:"providers" json:"providers" validate:"dive"`
	ProviderEndpoints map[string]string         `koanf:"provider_endpoints" json:"provider_endpoints,omitempty"`
	Maintenance       MaintenanceConfig         `koanf:"maintenance" json:"maintenance"`
	Scoring           ScoringConfig             `koanf:"scoring" json:"scoring"`
	Watch             WatchConfig               `koanf:"watch" json:"watch"`
	Worker            WorkerConfig              `koanf:"worker" json:"worker"`
	Server            ServerConfig              `koanf:"server" json:"server"`
	Organize          OrganizeConfig            `koanf:"organize" json:"organize"`
	Logging           LoggingConfig             `koanf:"logging" json:"logging"`
}

// DefaultTemplate is the organiser path template applied when the config file
// does not override it.
const DefaultTemplate = "{Category}/{HubName} ({Year})/{Format}/{HubName} ({Edition}){Ext}"

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		SchemaVersion: CurrentSchemaVersion,
		DatabasePath:  "/data/hearth.db",
		DataRoot:      "/data/library",
		Providers: []ProviderConfig{
			{
				Name:    "local-filesystem",
				Version: "1",
				Enabled: true,
				Weight:  1.0,
				Domain:  DomainUniversal,
			},
		},
		ProviderEndpoints: map[string]string{},
		Maintenance: MaintenanceConfig{
			MaxTransactionLogEntries: 100_000,
			VacuumOnStartup:          false,
		},
		Scoring: ScoringConfig{
			AutoLinkThreshold:     0.85,
			ConflictThreshold:     0.60,
			ConflictEpsilon:       0.05,
			StaleClaimDecayDays:   90,
			StaleClaimDecayFactor: 0.8,
		},
		Watch: WatchConfig{
			Root:             "/data/inbox",
			SettleDelay:      2 * time.Second,
			ProbeInterval:    500 * time.Millisecond,
			MaxProbeDelay:    30 * time.Second,
			MaxProbeAttempts: 8,
			QueueCapacity:    512,
		},
		Worker: WorkerConfig{
			Concurrency:   0, // 0 = runtime.NumCPU()
			QueueCapacity: 256,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            4130,
			Timeout:         30 * time.Second,
			AuthSecret:      "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Organize: OrganizeConfig{
			Template:     DefaultTemplate,
			MaxRenameTry: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// validate is shared; validator caches struct metadata internally.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Scoring.ConflictThreshold > c.Scoring.AutoLinkThreshold {
		return fmt.Errorf("invalid configuration: conflict_threshold %.2f exceeds auto_link_threshold %.2f",
			c.Scoring.ConflictThreshold, c.Scoring.AutoLinkThreshold)
	}
	return nil
}

// Provider returns the registration for the named provider, or nil.
func (c *Config) Provider(name string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i]
		}
	}
	return nil
}

// ProviderWeights flattens enabled providers into the weight maps consumed by
// the scoring engine.
func (c *Config) ProviderWeights() (weights map[string]float64, fieldWeights map[string]map[string]float64) {
	weights = make(map[string]float64, len(c.Providers))
	fieldWeights = make(map[string]map[string]float64)
	for _, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		weights[p.Name] = p.Weight
		if len(p.FieldWeights) > 0 {
			fw := make(map[string]float64, len(p.FieldWeights))
			for k, v := range p.FieldWeights {
				fw[k] = v
			}
			fieldWeights[p.Name] = fw
		}
	}
	return weights, fieldWeights
}
