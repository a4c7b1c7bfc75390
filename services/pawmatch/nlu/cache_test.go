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
	"context"
	"testing"

	badgerstore "github.com/AleutianAI/pawmatch/services/pawmatch/storage/badger"
)

func newTestStore(t *testing.T) *BadgerPredictionStore {
	t.Helper()
	db, err := badgerstore.OpenDB(badgerstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return NewBadgerPredictionStore(db, 0, nil)
}

func TestPredictionKey(t *testing.T) {
	base := PredictionKey("I want a dog", "intent-v1", "ner-v1")

	// Normalization: case and whitespace do not change the key.
	if got := PredictionKey("  i  WANT a   dog ", "intent-v1", "ner-v1"); got != base {
		t.Error("normalized utterance produced a different key")
	}

	// Different utterances and different models all change the key.
	if PredictionKey("i want a cat", "intent-v1", "ner-v1") == base {
		t.Error("different utterance produced the same key")
	}
	if PredictionKey("I want a dog", "intent-v2", "ner-v1") == base {
		t.Error("different intent model produced the same key")
	}
	if PredictionKey("I want a dog", "intent-v1", "ner-v2") == base {
		t.Error("different NER model produced the same key")
	}

	if len(base) != 64 {
		t.Errorf("key length = %d, want 64 hex characters", len(base))
	}
}

func TestBadgerPredictionStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key := PredictionKey("i want a dog in penang", "intent-v1", "ner-v1")
	pred := &Prediction{
		Intent: IntentPrediction{Intent: IntentFindPet, Confidence: 0.93},
		Entities: []EntitySpan{
			{Slot: SlotSpecies, Text: "dog"},
			{Slot: SlotLocation, Text: "penang"},
		},
	}

	if err := store.Save(ctx, key, pred); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil {
		t.Fatal("Load() returned nil for a saved key")
	}
	if got.Intent.Intent != IntentFindPet || got.Intent.Confidence != 0.93 {
		t.Errorf("loaded intent = %+v, want find_pet/0.93", got.Intent)
	}
	if len(got.Entities) != 2 || got.Entities[0].Slot != SlotSpecies || got.Entities[1].Text != "penang" {
		t.Errorf("loaded entities = %+v", got.Entities)
	}
}

func TestBadgerPredictionStoreMiss(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Load(context.Background(), PredictionKey("never seen", "a", "b"))
	if err != nil {
		t.Fatalf("Load() on miss error = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("Load() on miss = %+v, want nil", got)
	}
}

func TestBadgerPredictionStoreCancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Save(ctx, "somehash", &Prediction{}); err == nil {
		t.Error("Save() with cancelled context succeeded, want error")
	}
	if _, err := store.Load(ctx, "somehash"); err == nil {
		t.Error("Load() with cancelled context succeeded, want error")
	}
}
