// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package catalog

import (
	"errors"
	"io"
)

var (
	// ErrStoreCorrupt means the startup integrity check failed. This is
	// fatal: the engine refuses to accept traffic over a damaged catalogue.
	ErrStoreCorrupt = errors.New("catalog: integrity check failed")

	// ErrStoreUnavailable wraps transient read failures. Callers may retry.
	ErrStoreUnavailable = errors.New("catalog: store unavailable")

	// ErrNotFound is returned by single-row lookups with no match.
	ErrNotFound = errors.New("catalog: not found")
)

// InsertResult reports the outcome of an asset insertion.
type InsertResult int

const (
	// Inserted means a new asset row was created.
	Inserted InsertResult = iota
	// DuplicateHash means an asset with the same content hash already
	// exists. This is not an error; the caller skips silently.
	DuplicateHash
)

// closeQuietly closes a resource and explicitly ignores any error
// Use this for cleanup operations in error paths where Close() errors are not actionable
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
