// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package watcher observes the inbox directory and turns raw filesystem
// events into coalesced, lock-probed ingestion candidates.
package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// EventType classifies a raw filesystem event.
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
	EventRenamed
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileEvent is one raw filesystem observation. OldPath is set only for
// renames.
type FileEvent struct {
	Path       string
	OldPath    string
	Type       EventType
	OccurredAt time.Time
}

// Candidate is a settled, probe-checked file ready for ingestion.
// DetectedAt is the timestamp of the first event in the coalesced
// burst; ReadyAt is when the candidate cleared the debounce queue.
type Candidate struct {
	Path       string
	Event      FileEvent
	DetectedAt time.Time
	ReadyAt    time.Time
	IsFailed   bool
	FailReason string
}

// CanonicalPath normalises a path for debounce keying: full path with
// any trailing separator stripped, upper-cased. Two spellings of the
// same file must coalesce into one queue slot.
func CanonicalPath(path string) string {
	p := filepath.Clean(path)
	p = strings.TrimRight(p, string(filepath.Separator))
	return strings.ToUpper(p)
}
