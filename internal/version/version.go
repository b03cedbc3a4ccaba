// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package version exposes the build version reported by /system/status.
package version

// Version is the semantic version of the engine. Overridden at build time via
// -ldflags "-X github.com/hearthlib/hearth/internal/version.Version=v1.2.3".
var Version = "v0.9.0-dev"
