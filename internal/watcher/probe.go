// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package watcher

import "os"

// sharedOpen attempts a shared-read open. A writer that still holds the
// file exclusively (or a file that has vanished) surfaces as an error,
// which the caller retries with backoff.
func sharedOpen(path string) (*os.File, error) {
	return os.Open(path)
}
