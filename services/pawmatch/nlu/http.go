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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// =============================================================================
// Model Sidecar HTTP Clients
// =============================================================================
//
// Both models run in a sidecar process (the Python model server that owns
// the MiniLM classifier head and the fine-tuned NER transformer). The Go
// service talks to it over plain HTTP with typed request/response structs.
//
// Endpoints:
//
//	GET  /healthz       → 200 once both model artifacts are loaded
//	POST /v1/intent     → {"intent": "...", "confidence": 0.93}
//	POST /v1/entities   → {"entities": [{"type": "species", "text": "dog"}]}

// modelQueryTimeout is the per-call timeout for intent and entity requests.
// Classification is on the hot path of every turn; 3 seconds is ample for
// a local sidecar call.
const modelQueryTimeout = 3 * time.Second

// modelWarmTimeout bounds the startup health check. First contact can be
// slow while the sidecar loads model weights.
const modelWarmTimeout = 30 * time.Second

// sidecarTextReq is the request body shared by both prediction endpoints.
type sidecarTextReq struct {
	Text string `json:"text"`
}

// sidecarIntentResp is the /v1/intent response body.
type sidecarIntentResp struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// sidecarEntitiesResp is the /v1/entities response body.
type sidecarEntitiesResp struct {
	Entities []sidecarEntity `json:"entities"`
}

type sidecarEntity struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SidecarBaseURL resolves the model sidecar base URL from the environment,
// defaulting to the local development address.
func SidecarBaseURL() string {
	if url := os.Getenv("PAWMATCH_MODEL_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8571"
}

// modelClient holds the transport shared by both sidecar clients.
type modelClient struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// warm performs the startup health check. A non-200 response or transport
// error means the model artifacts are not loaded; per the error taxonomy
// this aborts startup rather than surfacing per-turn errors.
func (c *modelClient) warm(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, modelWarmTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model sidecar unreachable at %s: %w", c.baseURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model sidecar not ready (status %d): %s", resp.StatusCode, string(body))
	}

	c.logger.Info("model sidecar ready",
		slog.String("base_url", c.baseURL),
		slog.String("model", c.model),
	)
	return nil
}

// post sends a JSON body to path and decodes the JSON response into out.
func (c *modelClient) post(ctx context.Context, path string, in any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, modelQueryTimeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// =============================================================================
// HTTPIntentClassifier
// =============================================================================

// HTTPIntentClassifier implements IntentClassifier against the model sidecar.
//
// # Thread Safety
//
// Safe for concurrent use.
type HTTPIntentClassifier struct {
	mc modelClient
}

// NewHTTPIntentClassifier creates a classifier client for the sidecar at
// baseURL. An empty baseURL falls back to PAWMATCH_MODEL_URL and then the
// local development default. A nil logger defaults to slog.Default().
func NewHTTPIntentClassifier(baseURL string, logger *slog.Logger) *HTTPIntentClassifier {
	if baseURL == "" {
		baseURL = SidecarBaseURL()
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := os.Getenv("PAWMATCH_INTENT_MODEL")
	if model == "" {
		model = "minilm-logreg-v2"
	}
	return &HTTPIntentClassifier{mc: modelClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: modelWarmTimeout},
		logger:  logger,
	}}
}

// Classify returns the intent prediction for an utterance. Empty utterances
// short-circuit to IntentUnknown with zero confidence, matching the model
// server's own contract.
func (c *HTTPIntentClassifier) Classify(ctx context.Context, utterance string) (IntentPrediction, error) {
	if strings.TrimSpace(utterance) == "" {
		return IntentPrediction{Intent: IntentUnknown, Confidence: 0}, nil
	}

	start := time.Now()
	var resp sidecarIntentResp
	if err := c.mc.post(ctx, "/v1/intent", sidecarTextReq{Text: utterance}, &resp); err != nil {
		RecordModelLatency(c.mc.model, "error", time.Since(start).Seconds())
		return IntentPrediction{}, fmt.Errorf("intent classification: %w", err)
	}
	RecordModelLatency(c.mc.model, "ok", time.Since(start).Seconds())

	return IntentPrediction{
		Intent:     ParseIntent(resp.Intent),
		Confidence: resp.Confidence,
	}, nil
}

// Warm validates that the sidecar is up and the classifier head is loaded.
func (c *HTTPIntentClassifier) Warm(ctx context.Context) error {
	return c.mc.warm(ctx)
}

// Model returns the classifier model identifier.
func (c *HTTPIntentClassifier) Model() string { return c.mc.model }

// =============================================================================
// HTTPEntityExtractor
// =============================================================================

// HTTPEntityExtractor implements EntityExtractor against the model sidecar.
//
// # Thread Safety
//
// Safe for concurrent use.
type HTTPEntityExtractor struct {
	mc modelClient
}

// NewHTTPEntityExtractor creates an extractor client for the sidecar at
// baseURL. Defaulting matches NewHTTPIntentClassifier.
func NewHTTPEntityExtractor(baseURL string, logger *slog.Logger) *HTTPEntityExtractor {
	if baseURL == "" {
		baseURL = SidecarBaseURL()
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := os.Getenv("PAWMATCH_NER_MODEL")
	if model == "" {
		model = "pawmatch-ner-distilbert"
	}
	return &HTTPEntityExtractor{mc: modelClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: modelWarmTimeout},
		logger:  logger,
	}}
}

// Extract returns the typed spans recognized in an utterance. Spans with an
// unrecognized type are dropped and logged here, at the model boundary, so
// the dialog layer only ever sees valid slots.
func (e *HTTPEntityExtractor) Extract(ctx context.Context, utterance string) ([]EntitySpan, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, nil
	}

	start := time.Now()
	var resp sidecarEntitiesResp
	if err := e.mc.post(ctx, "/v1/entities", sidecarTextReq{Text: utterance}, &resp); err != nil {
		RecordModelLatency(e.mc.model, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("entity extraction: %w", err)
	}
	RecordModelLatency(e.mc.model, "ok", time.Since(start).Seconds())

	spans := make([]EntitySpan, 0, len(resp.Entities))
	for _, ent := range resp.Entities {
		slot, ok := ParseSlot(ent.Type)
		if !ok {
			e.mc.logger.Warn("dropping span with unrecognized entity type",
				slog.String("type", ent.Type),
				slog.String("text", ent.Text),
			)
			RecordDroppedEntity("unknown_type")
			continue
		}
		spans = append(spans, EntitySpan{Slot: slot, Text: strings.TrimSpace(ent.Text)})
	}
	return spans, nil
}

// Warm validates that the sidecar is up and the NER weights are loaded.
func (e *HTTPEntityExtractor) Warm(ctx context.Context) error {
	return e.mc.warm(ctx)
}

// Model returns the NER model identifier.
func (e *HTTPEntityExtractor) Model() string { return e.mc.model }
