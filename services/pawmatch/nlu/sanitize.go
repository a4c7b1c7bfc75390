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
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/pawmatch/services/pawmatch/config"
)

// =============================================================================
// Span Sanitizer
// =============================================================================
//
// The NER model is good but not clean: it tags placeholder words ("I want
// a pet"), out-of-scope animals, and occasional keyboard mash. The
// sanitizer filters raw spans before the dialog layer merges them, and
// recovers entities the model missed via keyword scans over the synonym
// table (a lone "kl" reliably defeats a transformer trained on full
// sentences).

// speciesOutOfScope are animals users ask about that the adoption inventory
// does not carry. Mentioning one anywhere in the utterance short-circuits
// to the unsupported-species notice.
var speciesOutOfScope = []string{
	"hamster", "hamsters", "rabbit", "rabbits", "bird", "birds",
	"parrot", "parrots", "fish", "fishes", "snake", "snakes",
	"turtle", "turtles", "guinea",
}

// speciesPlaceholders are NER species values that carry no information.
var speciesPlaceholders = []string{"one", "it", "animal", "pet", "pets"}

// agePlaceholders are NER age values known to be tagging mistakes.
var agePlaceholders = []string{"one", "1", "single", "johor"}

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

// Sanitizer validates and supplements raw entity spans.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type Sanitizer struct {
	syn    *config.SynonymTable
	logger *slog.Logger
}

// NewSanitizer creates a sanitizer over the given synonym table. A nil
// logger defaults to slog.Default().
func NewSanitizer(syn *config.SynonymTable, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{syn: syn, logger: logger}
}

// Sanitize filters the raw spans for one utterance and runs the keyword
// fallbacks.
//
// # Description
//
// Applies, in order: text-level sanity checks (garbled input), the
// out-of-scope species gate, placeholder removal, the supported-species
// restriction (dogs and cats only), breed plausibility, a generic
// short/vowel-less token filter, and finally keyword fallbacks that add a
// location or color span when the model missed one but the synonym table
// recognizes a word in the utterance.
//
// # Inputs
//
//   - text: The (autocorrected) utterance the spans came from.
//   - spans: Raw spans from the extractor. Not mutated.
//
// # Outputs
//
//   - []EntitySpan: Surviving plus recovered spans. May be empty.
//   - Notice: Non-empty when the whole utterance should be answered with a
//     fixed notice template instead of a merge.
func (s *Sanitizer) Sanitize(text string, spans []EntitySpan) ([]EntitySpan, Notice) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	// Keyboard mash and single characters cannot carry an entity.
	if len(trimmed) < 2 {
		return nil, NoticeGarbled
	}
	if len(trimmed) > 4 && !hasVowel(lower) {
		return nil, NoticeGarbled
	}

	for _, w := range tokenize(lower) {
		if contains(speciesOutOfScope, w) {
			return nil, NoticeUnsupportedSpecies
		}
	}

	out := make([]EntitySpan, 0, len(spans))
	haveSlot := make(map[Slot]bool, len(spans))
	for _, span := range spans {
		val := strings.ToLower(strings.TrimSpace(span.Text))

		switch span.Slot {
		case SlotSpecies:
			if contains(speciesPlaceholders, val) {
				s.drop(span, "placeholder")
				continue
			}
			if canonical := s.syn.Canonicalize(string(SlotSpecies), val); canonical != "Dog" && canonical != "Cat" {
				return nil, NoticeUnsupportedSpecies
			}
		case SlotAge:
			if contains(agePlaceholders, val) {
				s.drop(span, "placeholder")
				continue
			}
		case SlotBreed:
			if contains(speciesOutOfScope, val) {
				s.drop(span, "out_of_scope")
				continue
			}
			if _, known := s.syn.Lookup(string(SlotBreed), val); !known && !hasVowel(val) {
				s.drop(span, "implausible")
				continue
			}
		}

		if len(val) < 3 || !hasVowel(val) {
			s.drop(span, "too_short")
			continue
		}

		out = append(out, EntitySpan{Slot: span.Slot, Text: strings.TrimSpace(span.Text)})
		haveSlot[span.Slot] = true
	}

	// Keyword fallbacks: recover a location ("kl", "jb") or color the model
	// missed. First match wins; existing spans are never overridden.
	for _, slot := range []Slot{SlotLocation, SlotColor} {
		if haveSlot[slot] {
			continue
		}
		if word, ok := s.scanKeywords(lower, slot); ok {
			out = append(out, EntitySpan{Slot: slot, Text: word})
			haveSlot[slot] = true
		}
	}

	return out, NoticeNone
}

// scanKeywords looks for any synonym-table variant of slot inside text.
// Multi-word variants are matched as substrings with word boundaries;
// single words by token equality.
func (s *Sanitizer) scanKeywords(lower string, slot Slot) (string, bool) {
	padded := " " + lower + " "
	for _, variant := range s.syn.Variants(string(slot)) {
		if strings.Contains(padded, " "+variant+" ") {
			return variant, true
		}
	}
	return "", false
}

func (s *Sanitizer) drop(span EntitySpan, reason string) {
	s.logger.Debug("sanitizer dropped span",
		slog.String("slot", string(span.Slot)),
		slog.String("text", span.Text),
		slog.String("reason", reason),
	)
	RecordDroppedEntity(reason)
}

func tokenize(lower string) []string {
	return wordRe.FindAllString(lower, -1)
}

func hasVowel(s string) bool {
	return strings.ContainsAny(strings.ToLower(s), "aeiou")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
