// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion pipeline metrics
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hearth_ingest_duration_seconds",
			Help:    "Duration of candidate ingestion in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "library", "rejected", "lock_timeout", "skipped"
	)

	IngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_ingested_total",
			Help: "Total number of ingested candidates by outcome",
		},
		[]string{"outcome"},
	)

	DuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hearth_duplicates_skipped_total",
			Help: "Total number of candidates skipped as content-hash duplicates",
		},
	)

	CorruptQuarantined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hearth_corrupt_quarantined_total",
			Help: "Total number of corrupt files moved to quarantine",
		},
	)

	HashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hearth_hash_duration_seconds",
			Help:    "Duration of content hashing in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Watcher metrics
	WatchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_watch_events_total",
			Help: "Total number of filesystem events observed",
		},
		[]string{"type"}, // "created", "modified", "deleted", "renamed"
	)

	CandidatesQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_candidates_queued",
			Help: "Current number of settled candidates waiting for a worker",
		},
	)

	ProbeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hearth_probe_failures_total",
			Help: "Total number of candidates whose stability probe exhausted its retries",
		},
	)

	// Catalog metrics
	HubsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_hubs",
			Help: "Current number of hubs in the catalog",
		},
	)

	AssetsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_assets",
			Help: "Current number of assets in the catalog",
		},
	)

	JournalPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_journal_pending",
			Help: "Current number of unresolved entries in the intent journal",
		},
	)

	// Enrichment metrics
	EnrichmentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_enrichment_requests_total",
			Help: "Total number of enrichment provider calls",
		},
		[]string{"provider", "result"}, // result: "success", "failure", "rejected"
	)

	EnrichmentBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hearth_enrichment_breaker_state",
			Help: "Enrichment circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hearth_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Websocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_websocket_connections",
			Help: "Current number of active websocket connections",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_events_published_total",
			Help: "Total number of lifecycle events published on the bus",
		},
		[]string{"event"},
	)

	// System metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hearth_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordIngest records one completed ingestion with its terminal outcome.
func RecordIngest(outcome string, duration time.Duration) {
	IngestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	IngestedTotal.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEnrichment records one provider call and its result.
func RecordEnrichment(provider, result string) {
	EnrichmentRequests.WithLabelValues(provider, result).Inc()
}

// SetBreakerState maps a breaker state name to its gauge encoding.
func SetBreakerState(provider, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	EnrichmentBreakerState.WithLabelValues(provider).Set(v)
}
