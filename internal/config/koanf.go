// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/goccy/go-json"

	"github.com/hearthlib/hearth/internal/events"
	"github.com/hearthlib/hearth/internal/logging"
	"github.com/hearthlib/hearth/internal/models"
)

// EnvPrefix is stripped from environment variables before they are mapped to
// config paths: HEARTH_SERVER__PORT -> server.port.
const EnvPrefix = "HEARTH_"

// BackupSuffix is appended to the primary path for the fallback copy.
const BackupSuffix = ".bak"

// ErrConfigInvalid is returned when neither the primary config file nor its
// backup can be read and this is not a first run.
var ErrConfigInvalid = errors.New("config: primary and backup unreadable")

// Load reads the configuration document at path with layered precedence:
// defaults, then the JSON file, then HEARTH_-prefixed environment variables.
//
// File resolution follows the recovery contract:
//   - primary readable: use it
//   - primary unreadable, backup readable: restore primary from backup, use it
//   - neither exists: first run; defaults are persisted to path and used
//   - both exist but neither parses: ErrConfigInvalid (fatal to the caller)
func Load(path string) (*Config, error) {
	raw, source, err := resolveFile(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if raw != nil {
		if err := k.Load(file.Provider(source), koanfjson.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", source, err)
		}
	}

	// Environment variables win over the file. Double underscore separates
	// nesting levels so single underscores survive inside key names.
	envProvider := env.Provider(EnvPrefix, ".", func(key string) string {
		key = strings.TrimPrefix(key, EnvPrefix)
		key = strings.ToLower(key)
		return strings.ReplaceAll(key, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if raw == nil {
		// First run: persist the defaults so subsequent edits have a file
		// to start from.
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to persist first-run config: %w", err)
		}
		logging.Info().Str("path", path).Msg("created first-run configuration")
	}

	return cfg, nil
}

// resolveFile decides which on-disk document to load. Returns (nil, "", nil)
// on a first run where no file exists yet.
func resolveFile(path string) (raw []byte, source string, err error) {
	backup := path + BackupSuffix

	primaryRaw, primaryErr := readAndCheck(path)
	if primaryErr == nil {
		return primaryRaw, path, nil
	}

	backupRaw, backupErr := readAndCheck(backup)
	if backupErr == nil {
		// Restore the primary from the backup so the next startup does
		// not depend on the .bak again.
		if err := atomicWrite(path, backupRaw); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("failed to restore primary config from backup")
		} else {
			logging.Warn().Str("path", path).Msg("primary config restored from backup")
		}
		return backupRaw, path, nil
	}

	if os.IsNotExist(primaryErr) && os.IsNotExist(backupErr) {
		return nil, "", nil // first run
	}

	return nil, "", fmt.Errorf("%w: %s (%v); %s (%v)", ErrConfigInvalid, path, primaryErr, backup, backupErr)
}

// readAndCheck reads the file and verifies it is syntactically valid JSON.
// A truncated or corrupt primary must not shadow a healthy backup.
func readAndCheck(path string) ([]byte, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, err
	}
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return raw, nil
}

// Save writes cfg to path as indented JSON, rotating any existing primary to
// the .bak slot first.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := os.Rename(path, path+BackupSuffix); err != nil {
			return fmt.Errorf("failed to rotate config to backup: %w", err)
		}
	}

	if err := atomicWrite(path, raw); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

// SaveAndNotify persists cfg like Save and then announces the change
// on the event bus so realtime subscribers see configuration edits.
func SaveAndNotify(path string, cfg *Config, pub events.Publisher) error {
	if err := Save(path, cfg); err != nil {
		return err
	}
	pub.Publish(events.Event{
		Name:   models.EventConfigChanged,
		Detail: map[string]string{"path": path},
	})
	return nil
}

// atomicWrite writes via a temp file in the same directory plus rename, so
// readers never observe a half-written document.
func atomicWrite(path string, raw []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
