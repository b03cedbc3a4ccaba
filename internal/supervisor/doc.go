// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

/*
Package supervisor runs the long-lived parts of the kernel under a
suture v4 supervision tree.

The tree groups services into three child supervisors for failure
isolation:

	root ("hearth")
	├── engine-layer
	│   └── ingest-pipeline (recovery, watcher, debouncer, worker pool)
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── event-forwarder
	│   └── config-reloader
	└── api-layer
	    └── http-server

A crash in the ingest pipeline restarts only the engine layer: the API
keeps answering catalogue reads from the store and open websocket
connections survive. Every pipeline restart re-runs journal replay and
the differential scan, both of which are idempotent.

Services follow suture's contract: Serve blocks until the context is
cancelled, returns ctx.Err() on orderly shutdown, and returns any other
error to be restarted with exponential backoff.
*/
package supervisor
