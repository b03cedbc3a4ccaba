// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

/*
Package services adapts kernel components to suture's Serve(ctx)
contract so the supervisor tree can run them.

Most components (api.Server, websocket.Hub, websocket.Forwarder)
already block on a context; their wrappers only add a stable service
name for supervisor logging. The ingest pipeline is assembled here: its
Serve builds the watcher, debouncer and worker pool fresh on every
(re)start, runs recovery first, and tears everything down on shutdown.

Return values follow suture's convention: ctx.Err() for an orderly
stop, any other error to be restarted with backoff.
*/
package services
