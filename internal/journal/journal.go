// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package journal persists the set of ingestion candidates that have
// been detected but not yet terminally resolved. On startup the engine
// replays pending entries so a crash or lock-probe timeout never loses
// a file silently.
package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const pendingKeyPrefix = "pending:"

// Entry is one unresolved candidate.
type Entry struct {
	Path       string    `json:"path"`
	Reason     string    `json:"reason,omitempty"`
	Attempts   int       `json:"attempts"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal is a BadgerDB-backed recovery log.
type Journal struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the journal at dir. Pass an empty dir to run
// in memory, which tests use.
func Open(dir string, logger zerolog.Logger) (*Journal, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening recovery journal: %w", err)
	}
	return &Journal{db: db, log: logger}, nil
}

// RecordPending marks a path as detected-but-unresolved. Re-recording
// an existing path increments its attempt counter and keeps the
// original detection time.
func (j *Journal) RecordPending(path, reason string) error {
	key := []byte(pendingKeyPrefix + path)

	return j.db.Update(func(txn *badger.Txn) error {
		entry := Entry{Path: path, Reason: reason, Attempts: 1, RecordedAt: time.Now().UTC()}

		item, err := txn.Get(key)
		switch {
		case err == nil:
			var prev Entry
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &prev)
			}); verr == nil {
				entry.Attempts = prev.Attempts + 1
				entry.RecordedAt = prev.RecordedAt
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("reading journal entry: %w", err)
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshalling journal entry: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Resolve removes a path from the pending set. Resolving a path that
// was never recorded is not an error.
func (j *Journal) Resolve(path string) error {
	return j.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(pendingKeyPrefix + path))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("deleting journal entry: %w", err)
		}
		return nil
	})
}

// Pending lists all unresolved entries. Undecodable entries are logged
// and skipped rather than failing the whole replay.
func (j *Journal) Pending() ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pendingKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				j.log.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping undecodable journal entry")
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning recovery journal: %w", err)
	}
	return entries, nil
}

// Close flushes and closes the underlying store.
func (j *Journal) Close() error {
	return j.db.Close()
}
