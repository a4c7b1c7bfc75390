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
	"errors"
	"sync"
	"testing"

	"github.com/AleutianAI/pawmatch/services/pawmatch/config"
)

// fakeClassifier implements IntentClassifier for testing.
type fakeClassifier struct {
	pred    IntentPrediction
	err     error
	warmErr error
	calls   int
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (IntentPrediction, error) {
	f.calls++
	return f.pred, f.err
}
func (f *fakeClassifier) Warm(_ context.Context) error { return f.warmErr }
func (f *fakeClassifier) Model() string                { return "fake-intent" }

// fakeExtractor implements EntityExtractor for testing.
type fakeExtractor struct {
	spans   []EntitySpan
	err     error
	warmErr error
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) ([]EntitySpan, error) {
	f.calls++
	return f.spans, f.err
}
func (f *fakeExtractor) Warm(_ context.Context) error { return f.warmErr }
func (f *fakeExtractor) Model() string                { return "fake-ner" }

// memStore implements PredictionStore in memory.
type memStore struct {
	mu    sync.Mutex
	data  map[string]*Prediction
	saves int
}

func newMemStore() *memStore { return &memStore{data: make(map[string]*Prediction)} }

func (m *memStore) Load(_ context.Context, key string) (*Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStore) Save(_ context.Context, key string, pred *Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = pred
	m.saves++
	return nil
}

func newTestPipeline(t *testing.T, c IntentClassifier, e EntityExtractor, store PredictionStore, threshold float64) *Pipeline {
	t.Helper()
	p, err := NewPipeline(c, e, NewSanitizer(config.MustLoadSynonyms(), nil), store, threshold, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

func TestNewPipelineValidation(t *testing.T) {
	sanitizer := NewSanitizer(config.MustLoadSynonyms(), nil)

	if _, err := NewPipeline(nil, &fakeExtractor{}, sanitizer, nil, 0, nil); err == nil {
		t.Error("nil classifier accepted")
	}
	if _, err := NewPipeline(&fakeClassifier{}, nil, sanitizer, nil, 0, nil); err == nil {
		t.Error("nil extractor accepted")
	}
	if _, err := NewPipeline(&fakeClassifier{}, &fakeExtractor{}, nil, nil, 0, nil); err == nil {
		t.Error("nil sanitizer accepted")
	}
}

func TestPipelineAnalyze(t *testing.T) {
	classifier := &fakeClassifier{pred: IntentPrediction{Intent: IntentFindPet, Confidence: 0.9}}
	extractor := &fakeExtractor{spans: []EntitySpan{
		{Slot: SlotSpecies, Text: "dog"},
		{Slot: SlotLocation, Text: "penang"},
	}}
	p := newTestPipeline(t, classifier, extractor, nil, 0)

	a, err := p.Analyze(context.Background(), "i want a dog in penang")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.Intent.Intent != IntentFindPet {
		t.Errorf("intent = %q, want find_pet", a.Intent.Intent)
	}
	if len(a.Entities) != 2 {
		t.Errorf("entities = %v, want 2 spans", a.Entities)
	}
	if a.Notice != NoticeNone {
		t.Errorf("notice = %q, want none", a.Notice)
	}
}

func TestPipelineConfidenceThreshold(t *testing.T) {
	classifier := &fakeClassifier{pred: IntentPrediction{Intent: IntentFindPet, Confidence: 0.4}}
	p := newTestPipeline(t, classifier, &fakeExtractor{}, nil, 0.55)

	a, err := p.Analyze(context.Background(), "maybe a dog")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.Intent.Intent != IntentUnknown {
		t.Errorf("low-confidence intent = %q, want unknown", a.Intent.Intent)
	}
	// The raw confidence is preserved for observability.
	if a.Intent.Confidence != 0.4 {
		t.Errorf("confidence = %v, want 0.4", a.Intent.Confidence)
	}
}

func TestPipelineModelError(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("sidecar down")}
	p := newTestPipeline(t, classifier, &fakeExtractor{}, nil, 0)

	if _, err := p.Analyze(context.Background(), "hello"); err == nil {
		t.Error("Analyze() with failing classifier succeeded, want error")
	}
}

func TestPipelineCache(t *testing.T) {
	classifier := &fakeClassifier{pred: IntentPrediction{Intent: IntentFindPet, Confidence: 0.9}}
	extractor := &fakeExtractor{spans: []EntitySpan{{Slot: SlotSpecies, Text: "dog"}}}
	store := newMemStore()
	p := newTestPipeline(t, classifier, extractor, store, 0)

	// First call: models run, result saved.
	if _, err := p.Analyze(context.Background(), "i want a dog"); err != nil {
		t.Fatalf("first Analyze() error = %v", err)
	}
	if classifier.calls != 1 || extractor.calls != 1 {
		t.Fatalf("model calls = %d/%d, want 1/1", classifier.calls, extractor.calls)
	}
	if store.saves != 1 {
		t.Fatalf("store saves = %d, want 1", store.saves)
	}

	// Second call with the same normalized utterance: no model calls.
	a, err := p.Analyze(context.Background(), "  I  WANT a dog ")
	if err != nil {
		t.Fatalf("second Analyze() error = %v", err)
	}
	if classifier.calls != 1 || extractor.calls != 1 {
		t.Errorf("model calls after cache hit = %d/%d, want 1/1", classifier.calls, extractor.calls)
	}
	if a.Intent.Intent != IntentFindPet || len(a.Entities) != 1 {
		t.Errorf("cached analysis = %+v", a)
	}
}

func TestPipelineWarm(t *testing.T) {
	ok := newTestPipeline(t, &fakeClassifier{}, &fakeExtractor{}, nil, 0)
	if err := ok.Warm(context.Background()); err != nil {
		t.Errorf("Warm() error = %v", err)
	}

	bad := newTestPipeline(t, &fakeClassifier{warmErr: errors.New("loading")}, &fakeExtractor{}, nil, 0)
	if err := bad.Warm(context.Background()); err == nil {
		t.Error("Warm() with failing classifier succeeded, want error")
	}
}
