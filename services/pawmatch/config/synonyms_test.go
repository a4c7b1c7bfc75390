// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"testing"
)

func TestLoadSynonyms(t *testing.T) {
	table, err := LoadSynonyms()
	if err != nil {
		t.Fatalf("LoadSynonyms() error = %v", err)
	}
	if table == nil {
		t.Fatal("LoadSynonyms() returned nil table")
	}

	// Cached on second call.
	again, err := LoadSynonyms()
	if err != nil {
		t.Fatalf("second LoadSynonyms() error = %v", err)
	}
	if again != table {
		t.Error("LoadSynonyms() did not return the cached table")
	}
}

func TestCanonicalize(t *testing.T) {
	table := MustLoadSynonyms()

	tests := []struct {
		name string
		slot string
		raw  string
		want string
	}{
		{"species variant", "species", "doggy", "Dog"},
		{"species plural", "species", "cats", "Cat"},
		{"species case insensitive", "species", "PUPPY", "Dog"},
		{"location abbreviation", "location", "kl", "Kuala Lumpur"},
		{"location multi-word variant", "location", "johor bahru", "Johor"},
		{"color variant", "color", "ginger", "Orange"},
		{"breed abbreviation", "breed", "gsd", "German Shepherd"},
		{"fur length variant", "fur_length", "fluffy", "Long"},
		{"table miss falls back to title case", "breed", "sphynx", "Sphynx"},
		{"multi-word miss", "location", "port dickson", "Port Dickson"},
		{"whitespace trimmed", "species", "  dog  ", "Dog"},
		{"unknown slot", "mood", "happy", "Happy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Canonicalize(tt.slot, tt.raw); got != tt.want {
				t.Errorf("Canonicalize(%q, %q) = %q, want %q", tt.slot, tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	table := MustLoadSynonyms()

	for _, tc := range []struct{ slot, raw string }{
		{"species", "doggy"},
		{"location", "kl"},
		{"breed", "retriever"},
		{"breed", "sphynx"}, // fallback path
		{"color", "grey"},
	} {
		once := table.Canonicalize(tc.slot, tc.raw)
		twice := table.Canonicalize(tc.slot, once)
		if once != twice {
			t.Errorf("Canonicalize(%q, %q) not idempotent: %q != %q", tc.slot, tc.raw, once, twice)
		}
	}
}

func TestLookup(t *testing.T) {
	table := MustLoadSynonyms()

	if got, ok := table.Lookup("location", "jb"); !ok || got != "Johor" {
		t.Errorf("Lookup(location, jb) = %q, %v, want Johor, true", got, ok)
	}
	if _, ok := table.Lookup("location", "atlantis"); ok {
		t.Error("Lookup(location, atlantis) reported a mapping for an unknown value")
	}
	if _, ok := table.Lookup("mood", "happy"); ok {
		t.Error("Lookup on an unknown slot reported a mapping")
	}
}

func TestVariants(t *testing.T) {
	table := MustLoadSynonyms()

	variants := table.Variants("location")
	if len(variants) == 0 {
		t.Fatal("Variants(location) returned no entries")
	}
	for i := 1; i < len(variants); i++ {
		if variants[i-1] > variants[i] {
			t.Fatalf("Variants(location) not sorted: %q before %q", variants[i-1], variants[i])
		}
	}

	found := false
	for _, v := range variants {
		if v == "kl" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Variants(location) missing variant \"kl\"")
	}

	if got := table.Variants("mood"); got != nil {
		t.Errorf("Variants on an unknown slot = %v, want nil", got)
	}
}

func TestKnownWords(t *testing.T) {
	table := MustLoadSynonyms()
	words := table.KnownWords()

	want := map[string]bool{
		"dog":    false,
		"kitten": false,
		// Multi-word variants must be split into their parts.
		"kuala":  false,
		"lumpur": false,
	}
	for _, w := range words {
		if _, ok := want[w]; ok {
			want[w] = true
		}
	}
	for w, seen := range want {
		if !seen {
			t.Errorf("KnownWords() missing %q", w)
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dog", "Dog"},
		{"golden retriever", "Golden Retriever"},
		{"KUALA   LUMPUR", "Kuala Lumpur"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Errorf("TitleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
