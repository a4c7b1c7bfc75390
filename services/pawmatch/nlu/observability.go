// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nlu

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// =============================================================================
// OTel Tracer
// =============================================================================

var tracer = otel.Tracer("pawmatch.nlu")

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	nluModelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pawmatch",
		Subsystem: "nlu",
		Name:      "model_latency_seconds",
		Help:      "Latency of model sidecar calls by model and outcome",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 3.0},
	}, []string{"model", "outcome"})

	nluIntentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pawmatch",
		Subsystem: "nlu",
		Name:      "intent_total",
		Help:      "Classified intents after threshold, by label",
	}, []string{"intent"})

	nluLowConfidenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pawmatch",
		Subsystem: "nlu",
		Name:      "low_confidence_total",
		Help:      "Predictions demoted to unknown by the confidence threshold",
	})

	nluCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pawmatch",
		Subsystem: "nlu",
		Name:      "cache_total",
		Help:      "Prediction cache outcomes: hit, miss, save_error",
	}, []string{"outcome"})

	nluDroppedEntityTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pawmatch",
		Subsystem: "nlu",
		Name:      "dropped_entity_total",
		Help:      "Entity spans dropped at the boundary, by reason",
	}, []string{"reason"})
)

// RecordModelLatency records one model sidecar call.
func RecordModelLatency(model, outcome string, seconds float64) {
	nluModelLatency.WithLabelValues(model, outcome).Observe(seconds)
}

// RecordIntent records the post-threshold intent label for one turn.
func RecordIntent(intent Intent) {
	nluIntentTotal.WithLabelValues(string(intent)).Inc()
}

// RecordLowConfidence records a prediction demoted to unknown.
func RecordLowConfidence() {
	nluLowConfidenceTotal.Inc()
}

// RecordCacheOutcome records a prediction cache hit, miss, or save error.
func RecordCacheOutcome(outcome string) {
	nluCacheTotal.WithLabelValues(outcome).Inc()
}

// RecordDroppedEntity records an entity span dropped at the model boundary
// or by the sanitizer.
func RecordDroppedEntity(reason string) {
	nluDroppedEntityTotal.WithLabelValues(reason).Inc()
}
