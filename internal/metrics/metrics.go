// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

// Package metrics provides Prometheus instrumentation for Compass:
//   - API endpoint latency and throughput
//   - Recommendation request routing by strategy
//   - Ranking artifact lifecycle (reloads, snapshot cardinalities)
//   - Data source query performance and circuit breaker state
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total recommendation requests by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // strategy: "model", "cold_start"; outcome: "ok", "empty", "error"
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Artifact Lifecycle Metrics
	ArtifactReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_reloads_total",
			Help: "Total artifact reload attempts by result",
		},
		[]string{"result"}, // "reloaded", "unchanged", "in_progress", "error"
	)

	ArtifactReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artifact_reload_duration_seconds",
			Help:    "Duration of successful artifact reloads in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ArtifactLastReload = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artifact_last_reload_timestamp_seconds",
			Help: "Unix timestamp of the last successful artifact load",
		},
	)

	ArtifactUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artifact_users",
			Help: "Number of users in the active artifact snapshot",
		},
	)

	ArtifactItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artifact_items",
			Help: "Number of items in the active artifact snapshot",
		},
	)

	ArtifactMetadataEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artifact_metadata_entries",
			Help: "Number of item metadata entries in the active artifact snapshot",
		},
	)

	// Data Source Metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of data source queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of data source query errors",
		},
		[]string{"query"},
	)

	// CircuitBreakerState tracks breaker state transitions.
	// 0 = closed, 1 = half-open, 2 = open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker open transitions",
		},
		[]string{"name"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records a recommendation pipeline outcome.
func RecordRecommendation(strategy, outcome string, duration time.Duration) {
	RecommendationRequests.WithLabelValues(strategy, outcome).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordArtifactReload records a reload attempt outcome.
func RecordArtifactReload(result string, duration time.Duration) {
	ArtifactReloads.WithLabelValues(result).Inc()
	if result == "reloaded" {
		ArtifactReloadDuration.Observe(duration.Seconds())
		ArtifactLastReload.Set(float64(time.Now().Unix()))
	}
}

// UpdateArtifactSnapshot updates the gauges describing the active snapshot.
func UpdateArtifactSnapshot(users, items, metadataEntries int) {
	ArtifactUsers.Set(float64(users))
	ArtifactItems.Set(float64(items))
	ArtifactMetadataEntries.Set(float64(metadataEntries))
}

// RecordStoreQuery records a data source query metric.
func RecordStoreQuery(query string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(query).Inc()
	}
}
