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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newSidecar starts a fake model sidecar for the given handler map.
func newSidecar(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPIntentClassifierClassify(t *testing.T) {
	srv := newSidecar(t, map[string]http.HandlerFunc{
		"/v1/intent": func(w http.ResponseWriter, r *http.Request) {
			var req sidecarTextReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if req.Text != "i want a dog" {
				t.Errorf("sidecar received text %q", req.Text)
			}
			_ = json.NewEncoder(w).Encode(sidecarIntentResp{Intent: "find_pet", Confidence: 0.91})
		},
	})

	c := NewHTTPIntentClassifier(srv.URL, nil)
	pred, err := c.Classify(context.Background(), "i want a dog")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Intent != IntentFindPet || pred.Confidence != 0.91 {
		t.Errorf("Classify() = %+v, want find_pet/0.91", pred)
	}
}

func TestHTTPIntentClassifierUnknownLabel(t *testing.T) {
	srv := newSidecar(t, map[string]http.HandlerFunc{
		"/v1/intent": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(sidecarIntentResp{Intent: "order_pizza", Confidence: 0.99})
		},
	})

	c := NewHTTPIntentClassifier(srv.URL, nil)
	pred, err := c.Classify(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Intent != IntentUnknown {
		t.Errorf("unrecognized label mapped to %q, want unknown", pred.Intent)
	}
}

func TestHTTPIntentClassifierEmptyUtterance(t *testing.T) {
	// No server at all: the empty-utterance short-circuit must not make a call.
	c := NewHTTPIntentClassifier("http://127.0.0.1:1", nil)
	pred, err := c.Classify(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Intent != IntentUnknown || pred.Confidence != 0 {
		t.Errorf("Classify(empty) = %+v, want unknown/0", pred)
	}
}

func TestHTTPEntityExtractorExtract(t *testing.T) {
	srv := newSidecar(t, map[string]http.HandlerFunc{
		"/v1/entities": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(sidecarEntitiesResp{Entities: []sidecarEntity{
				{Type: "species", Text: " dog "},
				{Type: "location", Text: "penang"},
				{Type: "mood", Text: "happy"}, // unknown type, dropped
			}})
		},
	})

	e := NewHTTPEntityExtractor(srv.URL, nil)
	spans, err := e.Extract(context.Background(), "i want a dog in penang")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("Extract() returned %d spans, want 2 (unknown type dropped)", len(spans))
	}
	if spans[0].Slot != SlotSpecies || spans[0].Text != "dog" {
		t.Errorf("spans[0] = %+v, want trimmed species dog", spans[0])
	}
	if spans[1].Slot != SlotLocation || spans[1].Text != "penang" {
		t.Errorf("spans[1] = %+v", spans[1])
	}
}

func TestWarm(t *testing.T) {
	healthy := newSidecar(t, map[string]http.HandlerFunc{
		"/healthz": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})
	loading := newSidecar(t, map[string]http.HandlerFunc{
		"/healthz": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "models loading", http.StatusServiceUnavailable)
		},
	})

	if err := NewHTTPIntentClassifier(healthy.URL, nil).Warm(context.Background()); err != nil {
		t.Errorf("Warm() against healthy sidecar error = %v", err)
	}
	if err := NewHTTPEntityExtractor(loading.URL, nil).Warm(context.Background()); err == nil {
		t.Error("Warm() against loading sidecar succeeded, want error")
	}
	if err := NewHTTPIntentClassifier("http://127.0.0.1:1", nil).Warm(context.Background()); err == nil {
		t.Error("Warm() against unreachable sidecar succeeded, want error")
	}
}

func TestModelIdentifiers(t *testing.T) {
	if got := NewHTTPIntentClassifier("", nil).Model(); got == "" {
		t.Error("intent classifier has empty model identifier")
	}
	if got := NewHTTPEntityExtractor("", nil).Model(); got == "" {
		t.Error("entity extractor has empty model identifier")
	}
}
