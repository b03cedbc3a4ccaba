// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package catalog implements the append-only persistent catalogue backing the
// engine: assets, hubs, works, editions, claims, canonical values and the
// transaction journal.
//
// Storage is a single SQLite file opened with write-ahead logging and foreign
// key enforcement. The store presents a single-writer discipline; readers
// proceed concurrently under WAL. Startup runs PRAGMA integrity_check and the
// engine refuses to start if it fails.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/hearthlib/hearth/internal/logging"
)

// Store wraps the SQLite connection and provides catalogue access methods.
// All methods are safe for concurrent use.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the catalogue at path and initializes the schema.
// Pass ":memory:" for an ephemeral store in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	connStr, inMemory := buildConnString(path)

	if !inMemory {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// SQLite in-memory databases are isolated per connection; force a
		// single connection so the pool shares one view.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		// WAL supports one writer and many readers.
		conn.SetMaxOpenConns(runtime.NumCPU() + 1)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(0)

		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			closeQuietly(conn)
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s := &Store{conn: conn, path: path}

	if err := s.checkIntegrity(ctx); err != nil {
		closeQuietly(conn)
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.runMigrations(ctx); err != nil {
		closeQuietly(conn)
		return nil, err
	}

	return s, nil
}

// buildConnString assembles the driver URI with the pragmas the engine
// depends on: foreign key enforcement and a generous busy timeout.
func buildConnString(path string) (connStr string, inMemory bool) {
	const pragmas = "_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"

	switch {
	case path == ":memory:":
		// WAL does not apply to shared in-memory databases.
		return "file:hearthmem?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&" + pragmas, true
	case strings.HasPrefix(path, "file:"):
		if strings.Contains(path, "_pragma=foreign_keys") {
			return path, strings.Contains(path, "mode=memory")
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + pragmas, strings.Contains(path, "mode=memory")
	default:
		return "file:" + path + "?" + pragmas, false
	}
}

// checkIntegrity runs PRAGMA integrity_check. Anything but a single "ok" row
// means structural corruption, which is fatal.
func (s *Store) checkIntegrity(ctx context.Context) error {
	var result string
	if err := s.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if result != "ok" {
		logging.Error().Str("path", s.path).Str("result", result).Msg("catalogue integrity check failed")
		return fmt.Errorf("%w: %s", ErrStoreCorrupt, result)
	}
	return nil
}

// Vacuum reclaims free pages. Called at startup when configured.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	return nil
}

// Ping checks if the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.conn.PingContext(ctx)
}

// Close closes the underlying connection. A WAL checkpoint is attempted first
// so the next startup does not begin with a replay.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	return s.conn.Close()
}
