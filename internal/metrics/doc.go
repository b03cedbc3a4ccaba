// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

/*
Package metrics provides Prometheus instrumentation for the kernel.

All collectors are registered at package init through promauto and are
exposed on the /metrics endpoint in Prometheus text format.

Instrumented areas:
  - Ingestion pipeline outcomes and durations
  - Filesystem watcher events and candidate queue depth
  - Catalog totals (hubs, assets) and intent-journal backlog
  - Enrichment provider calls and circuit breaker state
  - API request latency and throughput
  - Websocket connection counts

Example PromQL:

	# Ingestion rate by outcome
	rate(hearth_ingested_total[5m])

	# API p95 latency
	histogram_quantile(0.95, rate(hearth_api_request_duration_seconds_bucket[5m]))

All recording functions are safe for concurrent use.
*/
package metrics
