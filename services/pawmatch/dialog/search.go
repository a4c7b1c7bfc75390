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
	"context"
	"log/slog"
	"strings"
)

// =============================================================================
// Search Trigger
// =============================================================================

// Searcher receives the completed query once species and location are set.
// The adoption-listing backend itself is an external system; this interface
// is the hand-off point.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Searcher interface {
	// Search dispatches the query. Errors are logged by the controller and
	// never surfaced to the user — the search echo has already been chosen.
	Search(ctx context.Context, q Query) error
}

// Description renders the query as the noun phrase used in the search echo:
// optional descriptors, then the species, pluralized when no specific breed
// narrows it ("small cream dogs", "white Persian cat").
func (q Query) Description() string {
	details := make([]string, 0, 6)
	for _, v := range []string{q.Size, q.Color, q.Gender, q.Age, q.FurLength, q.Breed} {
		if v != "" {
			details = append(details, v)
		}
	}

	species := strings.ToLower(q.Species)
	if species == "" {
		species = "pet"
	}
	if q.Breed == "" {
		species += "s"
	}

	return strings.ToLower(strings.Join(append(details, species), " "))
}

// LoggingSearcher is the stub Searcher: it logs the payload that would be
// sent to the listing backend.
type LoggingSearcher struct {
	logger *slog.Logger
}

// NewLoggingSearcher creates the stub searcher. A nil logger defaults to
// slog.Default().
func NewLoggingSearcher(logger *slog.Logger) *LoggingSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSearcher{logger: logger}
}

// Search logs the completed query.
func (s *LoggingSearcher) Search(_ context.Context, q Query) error {
	s.logger.Info("search triggered",
		slog.String("species", q.Species),
		slog.String("location", q.Location),
		slog.String("description", q.Description()),
	)
	return nil
}
