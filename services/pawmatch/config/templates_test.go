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
	"strings"
	"testing"
)

func TestLoadTemplates(t *testing.T) {
	tmpl, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}

	// Every template the controller selects must be present; an empty one
	// would silently produce blank replies.
	fields := map[string]string{
		"greeting":            tmpl.Greeting,
		"hello_again":         tmpl.HelloAgain,
		"dismissal":           tmpl.Dismissal,
		"thanks":              tmpl.Thanks,
		"farewell":            tmpl.Farewell,
		"farewell_echo":       tmpl.FarewellEcho,
		"care_advice":         tmpl.CareAdvice,
		"clarification":       tmpl.Clarification,
		"clarify_details":     tmpl.ClarifyDetails,
		"clarify_required":    tmpl.ClarifyRequired,
		"garbled":             tmpl.Garbled,
		"unsupported_species": tmpl.UnsupportedSpecies,
		"confirm_updated":     tmpl.ConfirmUpdated,
		"confirm_added":       tmpl.ConfirmAdded,
		"search_echo":         tmpl.SearchEcho,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			t.Errorf("template %q is empty", name)
		}
	}
}

func TestTemplatesInterpolationArity(t *testing.T) {
	tmpl := MustLoadTemplates()

	// The controller interpolates these with two values each.
	for name, value := range map[string]string{
		"confirm_updated": tmpl.ConfirmUpdated,
		"confirm_added":   tmpl.ConfirmAdded,
		"search_echo":     tmpl.SearchEcho,
	} {
		if got := strings.Count(value, "%s"); got != 2 {
			t.Errorf("template %q has %d %%s placeholders, want 2", name, got)
		}
	}
}

func TestPrompt(t *testing.T) {
	tmpl := MustLoadTemplates()

	for _, slot := range []string{"species", "location", "breed", "color", "size", "gender", "age", "fur_length"} {
		if strings.TrimSpace(tmpl.Prompt(slot)) == "" {
			t.Errorf("Prompt(%q) is empty", slot)
		}
	}

	got := tmpl.Prompt("favorite_toy")
	if !strings.Contains(got, "favorite_toy") {
		t.Errorf("generic prompt fallback = %q, want it to name the slot", got)
	}
}
