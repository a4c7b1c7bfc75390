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
	"strings"
)

// =============================================================================
// Autocorrect — Light Typo Correction
// =============================================================================
//
// Users type "doog" and "kitten" with one hand on a phone. Correcting
// obvious typos BEFORE the model calls measurably improves both the intent
// classifier and the NER model, because both were trained on clean text.
// Correction is deliberately conservative: only words longer than three
// characters are considered, and a candidate replaces the original only
// when its similarity clears a high threshold.

// autocorrectMinSimilarity is the minimum normalized similarity
// ((lenA + lenB - distance) / (lenA + lenB), with distance counting a
// substitution as one deletion plus one insertion) for a known word to
// replace the user's token. At 0.85 a dropped or doubled letter in a
// four-letter word passes, a substituted letter in a five-letter word
// does not.
const autocorrectMinSimilarity = 0.85

// autocorrectMinTokenLen is the shortest token considered for correction.
// Very short tokens ("kl", "jb", "pg") are usually abbreviations the
// synonym table already knows, not typos.
const autocorrectMinTokenLen = 4

// defaultKnownWords supplements the synonym-table vocabulary with common
// conversational words that should anchor corrections but are not entity
// variants themselves.
var defaultKnownWords = []string{
	"adopt", "adoption", "looking", "want", "care", "train",
	"male", "female", "small", "large", "short", "long", "fur",
}

// Autocorrector corrects obvious typos against a fixed known-word list.
//
// # Thread Safety
//
// Safe for concurrent use after construction (the word list is immutable).
type Autocorrector struct {
	words []string
}

// NewAutocorrector builds an autocorrector over the given vocabulary plus
// the built-in conversational words. Words are stored lower-cased and
// deduplicated.
func NewAutocorrector(vocabulary []string) *Autocorrector {
	seen := make(map[string]struct{}, len(vocabulary)+len(defaultKnownWords))
	var words []string
	for _, src := range [][]string{vocabulary, defaultKnownWords} {
		for _, w := range src {
			lw := strings.ToLower(w)
			if _, dup := seen[lw]; dup || lw == "" {
				continue
			}
			seen[lw] = struct{}{}
			words = append(words, lw)
		}
	}
	return &Autocorrector{words: words}
}

// Correct returns text with each correctable token replaced by its closest
// known word. Tokens shorter than four characters, exact vocabulary
// matches, and tokens with no close-enough candidate pass through
// unchanged. Case of corrected tokens is normalized to lower.
func (a *Autocorrector) Correct(text string) string {
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if len(lower) < autocorrectMinTokenLen {
			continue
		}
		best, score := a.closest(lower)
		if best == "" || best == lower {
			continue
		}
		if score >= autocorrectMinSimilarity {
			tokens[i] = best
		}
	}
	return strings.Join(tokens, " ")
}

// closest returns the vocabulary word with the highest normalized
// similarity to tok, and that similarity.
func (a *Autocorrector) closest(tok string) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, w := range a.words {
		// Cheap length gate: the length difference is a lower bound on the
		// edit distance, so a similarity >= 0.85 is impossible when lengths
		// differ by more than 15% of the combined length.
		total := len(w) + len(tok)
		if abs(len(w)-len(tok)) > total-int(autocorrectMinSimilarity*float64(total)) {
			continue
		}
		d := indelDistance(tok, w)
		score := float64(total-d) / float64(total)
		if score > bestScore {
			best, bestScore = w, score
		}
	}
	return best, bestScore
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// indelDistance calculates the edit distance between two strings where
// the only operations are insertion and deletion, so replacing a letter
// costs 2. This is a simple implementation for fuzzy matching.
func indelDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Use two rows instead of full matrix for memory efficiency
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 2
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution as delete + insert
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
