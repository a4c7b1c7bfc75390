// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nlu is the model boundary of the Pawmatch service. It defines the
// consumer-side interfaces for the two external collaborators — the intent
// classifier and the entity extractor — plus the validation, autocorrect,
// and caching that sit between their raw predictions and the dialog layer.
//
// The models themselves (a sentence-embedding classifier and a fine-tuned
// transformer NER) run in a sidecar process; this package consumes their
// predictions as opaque labeled strings and never implements inference.
//
// Thread Safety:
//
//	All types in this package are safe for concurrent use after construction.
package nlu

import (
	"context"
	"strings"
)

// =============================================================================
// Intents
// =============================================================================

// Intent is the coarse-grained purpose of a user utterance, drawn from the
// classifier's fixed vocabulary.
type Intent string

const (
	// IntentFindPet means the user is searching for a pet to adopt.
	IntentFindPet Intent = "find_pet"
	// IntentPetCare means the user asked a pet-care question.
	IntentPetCare Intent = "pet_care"
	// IntentGreeting is small talk opening the conversation.
	IntentGreeting Intent = "greeting"
	// IntentThankYou is an acknowledgement of a previous reply.
	IntentThankYou Intent = "thank_you"
	// IntentGoodbye ends the conversation.
	IntentGoodbye Intent = "goodbye"
	// IntentUnknown means the classifier could not produce a confident label.
	IntentUnknown Intent = "unknown"
)

// ParseIntent validates a raw label from the model boundary. Labels outside
// the fixed vocabulary collapse to IntentUnknown — the classifier contract
// says they never occur, but a model swap must not panic the controller.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentFindPet, IntentPetCare, IntentGreeting, IntentThankYou, IntentGoodbye:
		return Intent(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return IntentUnknown
	}
}

// =============================================================================
// Slots
// =============================================================================

// Slot names a field of the adoption query.
type Slot string

const (
	SlotSpecies   Slot = "species"
	SlotBreed     Slot = "breed"
	SlotColor     Slot = "color"
	SlotLocation  Slot = "location"
	SlotAge       Slot = "age"
	SlotSize      Slot = "size"
	SlotGender    Slot = "gender"
	SlotFurLength Slot = "fur_length"
)

// AllSlots lists every recognized slot. Order matters: it is the fixed
// priority in which the controller prompts for unset slots (required slots
// first).
var AllSlots = []Slot{
	SlotSpecies, SlotLocation, SlotBreed, SlotColor,
	SlotAge, SlotSize, SlotGender, SlotFurLength,
}

// RequiredSlots are the slots that must be filled before a search triggers.
var RequiredSlots = []Slot{SlotSpecies, SlotLocation}

// ParseSlot validates a raw entity type from the model boundary.
//
// # Outputs
//
//   - Slot: The validated slot. Zero value on failure.
//   - bool: False if the type is not in the recognized set. Per the error
//     taxonomy, callers log and skip such spans rather than failing the turn.
func ParseSlot(raw string) (Slot, bool) {
	s := Slot(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllSlots {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// =============================================================================
// Predictions
// =============================================================================

// IntentPrediction is the classifier's output for one utterance.
type IntentPrediction struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// EntitySpan is one typed substring extracted from an utterance. Text is
// the raw surface form; canonicalization happens at merge time in the
// dialog layer.
type EntitySpan struct {
	Slot Slot   `json:"slot"`
	Text string `json:"text"`
}

// Notice flags utterances the sanitizer refused to extract from. The
// controller maps each notice to a fixed reply template.
type Notice string

const (
	// NoticeNone means extraction proceeded normally.
	NoticeNone Notice = ""
	// NoticeGarbled means the utterance failed the basic sanity checks
	// (too short, or no vowels in a longer token stream).
	NoticeGarbled Notice = "garbled"
	// NoticeUnsupportedSpecies means the user asked for an animal outside
	// the supported set (only cats and dogs are searchable).
	NoticeUnsupportedSpecies Notice = "unsupported_species"
)

// Analysis is the combined, sanitized NLU result for one turn.
type Analysis struct {
	Intent   IntentPrediction
	Entities []EntitySpan
	Notice   Notice
}

// =============================================================================
// External Collaborator Interfaces
// =============================================================================

// IntentClassifier is the consumer-side contract for the intent model.
//
// Description:
//
//	The dialog layer only needs a label and a confidence per utterance.
//	This minimal interface makes adapters trivial for any model transport.
//
// Thread Safety: Implementations must be safe for concurrent use.
type IntentClassifier interface {
	// Classify returns the intent prediction for an utterance.
	Classify(ctx context.Context, utterance string) (IntentPrediction, error)

	// Warm validates that the model is loaded and reachable. Called once at
	// startup; failure is fatal to the session (never a per-turn error).
	Warm(ctx context.Context) error

	// Model returns the model identifier, used in cache keys and metrics.
	Model() string
}

// EntityExtractor is the consumer-side contract for the NER model.
//
// Thread Safety: Implementations must be safe for concurrent use.
type EntityExtractor interface {
	// Extract returns the typed spans recognized in an utterance. Spans
	// whose type is outside the recognized slot set are dropped (and
	// logged) at the model boundary, so callers only ever see valid slots.
	Extract(ctx context.Context, utterance string) ([]EntitySpan, error)

	// Warm validates that the model is loaded and reachable.
	Warm(ctx context.Context) error

	// Model returns the model identifier, used in cache keys and metrics.
	Model() string
}
