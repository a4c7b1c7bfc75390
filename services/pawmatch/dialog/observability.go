// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dialog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// =============================================================================
// OTel Tracer
// =============================================================================

var tracer = otel.Tracer("pawmatch.dialog")

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	turnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pawmatch",
		Subsystem: "dialog",
		Name:      "turn_total",
		Help:      "Processed turns by routed intent",
	}, []string{"intent"})

	slotMergeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pawmatch",
		Subsystem: "dialog",
		Name:      "slot_merge_total",
		Help:      "Slot writes by slot name and kind (added, updated)",
	}, []string{"slot", "kind"})

	searchTriggerTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pawmatch",
		Subsystem: "dialog",
		Name:      "search_trigger_total",
		Help:      "Search payloads emitted once required slots were filled",
	})

	sessionGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pawmatch",
		Subsystem: "dialog",
		Name:      "live_sessions",
		Help:      "Sessions currently held by the session manager",
	})
)
