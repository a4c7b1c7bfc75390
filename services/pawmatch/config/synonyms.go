// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds embedded data tables for the Pawmatch service:
// the synonym/canonicalization table and the reply templates.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Synonym Table
// =============================================================================

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// SynonymTable maps raw entity text to canonical display values, per slot.
// The NER model returns surface forms ("kl", "jb", "doggy"); the session
// must only ever hold the canonical form ("Kuala Lumpur", "Johor", "Dog").
//
// The table is loaded from synonyms.yaml at startup and cached. A reverse
// index (lower-cased variant → canonical) is built once at load time; every
// canonical value also indexes to itself, which makes Canonicalize
// idempotent by construction.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type SynonymTable struct {
	// forward holds slot → canonical → variants, as parsed from YAML.
	forward map[string]map[string][]string

	// reverse holds slot → lower(variant) → canonical.
	reverse map[string]map[string]string
}

var (
	cachedSynonyms  *SynonymTable
	synonymsOnce    sync.Once
	synonymsLoadErr error
)

// LoadSynonyms loads and caches the synonym table from the embedded YAML
// configuration. Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - *SynonymTable: The loaded table. Never nil on success.
//   - error: Non-nil if YAML parsing fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadSynonyms() (*SynonymTable, error) {
	synonymsOnce.Do(func() {
		var raw map[string]map[string][]string
		if err := yaml.Unmarshal(defaultSynonymsYAML, &raw); err != nil {
			synonymsLoadErr = fmt.Errorf("parsing synonyms.yaml: %w", err)
			return
		}

		t := &SynonymTable{
			forward: raw,
			reverse: make(map[string]map[string]string, len(raw)),
		}
		variants := 0
		for slot, entries := range raw {
			idx := make(map[string]string)
			for canonical, vs := range entries {
				idx[strings.ToLower(canonical)] = canonical
				for _, v := range vs {
					idx[strings.ToLower(v)] = canonical
					variants++
				}
			}
			t.reverse[slot] = idx
		}

		cachedSynonyms = t
		slog.Info("synonym table loaded",
			slog.Int("slot_count", len(raw)),
			slog.Int("variant_count", variants),
		)
	})
	return cachedSynonyms, synonymsLoadErr
}

// MustLoadSynonyms loads the synonym table or returns an empty table on
// error. Logs a warning if loading fails but does not panic — entity values
// then pass through with title-case formatting only.
func MustLoadSynonyms() *SynonymTable {
	t, err := LoadSynonyms()
	if err != nil {
		slog.Warn("synonym table loading failed, continuing without mappings",
			slog.String("error", err.Error()),
		)
		return &SynonymTable{
			forward: map[string]map[string][]string{},
			reverse: map[string]map[string]string{},
		}
	}
	return t
}

// =============================================================================
// Canonicalization
// =============================================================================

// Canonicalize maps raw recognized text to its canonical display value for
// the given slot. Pure and total: on a table miss the raw text is returned
// title-cased, never an error. Canonical values map to themselves, so
// Canonicalize(slot, Canonicalize(slot, raw)) == Canonicalize(slot, raw).
//
// # Inputs
//
//   - slot: Slot name ("species", "location", ...). Unknown slots fall
//     through to the title-case default.
//   - raw: Raw entity text from the NER model.
//
// # Outputs
//
//   - string: Canonical display value.
func (t *SynonymTable) Canonicalize(slot, raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if idx, ok := t.reverse[slot]; ok {
		if canonical, ok := idx[key]; ok {
			return canonical
		}
	}
	return TitleCase(key)
}

// Lookup returns the canonical value for raw under slot, and whether the
// table had a mapping. Unlike Canonicalize it does not apply the title-case
// fallback.
func (t *SynonymTable) Lookup(slot, raw string) (string, bool) {
	idx, ok := t.reverse[slot]
	if !ok {
		return "", false
	}
	canonical, ok := idx[strings.ToLower(strings.TrimSpace(raw))]
	return canonical, ok
}

// Variants returns every lower-cased variant known for a slot, sorted.
// Used by the keyword fallback scans and by the autocorrect word list.
func (t *SynonymTable) Variants(slot string) []string {
	idx, ok := t.reverse[slot]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(idx))
	for v := range idx {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// KnownWords returns the deduplicated set of all single-word variants and
// canonical values across every slot, sorted. Multi-word variants are split
// so the per-token autocorrector can match their parts ("kuala", "lumpur").
func (t *SynonymTable) KnownWords() []string {
	seen := make(map[string]struct{})
	for _, idx := range t.reverse {
		for variant, canonical := range idx {
			for _, w := range strings.Fields(variant) {
				seen[w] = struct{}{}
			}
			for _, w := range strings.Fields(strings.ToLower(canonical)) {
				seen[w] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// TitleCase upper-cases the first letter of each space-separated word.
// Default formatting for entity values missing from the synonym table.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
