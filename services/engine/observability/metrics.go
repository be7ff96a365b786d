// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the engine.
//
// Metrics cover pipeline requests by strategy and status, per-stage
// latency, analysis cache effectiveness, and classifier batch sizes.
// Exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "inkwell"

const engineSubsystem = "engine"

// EngineMetrics holds all Prometheus metrics for the pipeline and the
// analysis cache. Initialize once at startup via InitMetrics().
type EngineMetrics struct {
	// RequestsTotal counts pipeline runs.
	// Labels: strategy, status (ok, evidence_only, blocked,
	// insufficient_evidence, error)
	RequestsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (guard, plan, retrieve, rerank, generate)
	StageDurationSeconds *prometheus.HistogramVec

	// CacheUnitsTotal counts analyzed text units by outcome.
	// Labels: outcome (hit, miss)
	CacheUnitsTotal *prometheus.CounterVec

	// ClassifierBatchSize measures how many sentences each classifier
	// call carries. Incrementality keeps this near the edit size.
	ClassifierBatchSize prometheus.Histogram
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
// Nil-safe accessors below mean instrumented code works in tests that
// never initialize it.
var DefaultMetrics *EngineMetrics

// InitMetrics registers all engine metrics with the default registry.
// Call once at startup; a second call panics on duplicate
// registration.
func InitMetrics() *EngineMetrics {
	DefaultMetrics = &EngineMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "requests_total",
				Help:      "Total pipeline runs by strategy and outcome status",
			},
			[]string{"strategy", "status"},
		),
		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Latency of each pipeline stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		CacheUnitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "cache_units_total",
				Help:      "Analyzed text units by cache outcome",
			},
			[]string{"outcome"},
		),
		ClassifierBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "classifier_batch_size",
				Help:      "Sentences per classifier call",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
	}
	return DefaultMetrics
}

// ObserveRequest records one completed pipeline run.
func ObserveRequest(strategy, status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.RequestsTotal.WithLabelValues(strategy, status).Inc()
}

// ObserveStage records one stage's duration.
func ObserveStage(stage string, elapsed time.Duration) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.StageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveCacheUnits records hit/miss counts from one analysis run.
func ObserveCacheUnits(hits, misses int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.CacheUnitsTotal.WithLabelValues("hit").Add(float64(hits))
	DefaultMetrics.CacheUnitsTotal.WithLabelValues("miss").Add(float64(misses))
}

// ObserveClassifierBatch records the size of one classifier call.
func ObserveClassifierBatch(size int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ClassifierBatchSize.Observe(float64(size))
}
