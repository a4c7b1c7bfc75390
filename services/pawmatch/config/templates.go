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
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Reply Templates
// =============================================================================

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// Templates holds every fixed reply string the controller can emit. The
// controller performs no free-form text generation — reply selection is
// keyed by (intent, slot just filled, search readiness) and values are
// interpolated with fmt.Sprintf.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type Templates struct {
	Greeting           string            `yaml:"greeting"`
	HelloAgain         string            `yaml:"hello_again"`
	Dismissal          string            `yaml:"dismissal"`
	Thanks             string            `yaml:"thanks"`
	Farewell           string            `yaml:"farewell"`
	FarewellEcho       string            `yaml:"farewell_echo"`
	CareAdvice         string            `yaml:"care_advice"`
	Clarification      string            `yaml:"clarification"`
	ClarifyDetails     string            `yaml:"clarify_details"`
	ClarifyRequired    string            `yaml:"clarify_required"`
	Garbled            string            `yaml:"garbled"`
	UnsupportedSpecies string            `yaml:"unsupported_species"`
	ConfirmUpdated     string            `yaml:"confirm_updated"`
	ConfirmAdded       string            `yaml:"confirm_added"`
	SearchEcho         string            `yaml:"search_echo"`
	Prompts            map[string]string `yaml:"prompts"`
}

var (
	cachedTemplates  *Templates
	templatesOnce    sync.Once
	templatesLoadErr error
)

// LoadTemplates loads and caches the reply templates from the embedded YAML
// configuration. Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - *Templates: The loaded templates. Never nil on success.
//   - error: Non-nil if YAML parsing fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadTemplates() (*Templates, error) {
	templatesOnce.Do(func() {
		var t Templates
		if err := yaml.Unmarshal(defaultTemplatesYAML, &t); err != nil {
			templatesLoadErr = fmt.Errorf("parsing templates.yaml: %w", err)
			return
		}
		cachedTemplates = &t
		slog.Info("reply templates loaded",
			slog.Int("prompt_count", len(t.Prompts)),
		)
	})
	return cachedTemplates, templatesLoadErr
}

// MustLoadTemplates loads the reply templates or panics. Template loading
// failure means the binary was built from a broken templates.yaml — there
// is no sensible degraded mode for a system whose only output is templates.
func MustLoadTemplates() *Templates {
	t, err := LoadTemplates()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return t
}

// Prompt returns the slot-filling question for a slot name, falling back to
// a generic phrasing for slots missing from templates.yaml.
func (t *Templates) Prompt(slot string) string {
	if p, ok := t.Prompts[slot]; ok {
		return p
	}
	return fmt.Sprintf("Could you tell me the %s?", slot)
}
