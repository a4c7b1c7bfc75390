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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Pipeline
// =============================================================================

// DefaultConfidenceThreshold is the minimum classifier confidence for a
// label to be accepted. Below it, the prediction demotes to IntentUnknown
// and the dialog layer runs its recovery path.
const DefaultConfidenceThreshold = 0.55

// Pipeline runs one utterance through both external models and the
// sanitizer, with optional prediction caching.
//
// # Description
//
// The classifier and the extractor are independent — neither consumes the
// other's output — so the pipeline calls them in parallel. Raw predictions
// are cached (when a store is configured) keyed by utterance hash; the
// confidence threshold and the sanitizer apply after the cache on both the
// hit and miss paths, so rule and threshold changes take effect without
// invalidation.
//
// # Thread Safety
//
// Safe for concurrent use.
type Pipeline struct {
	classifier IntentClassifier
	extractor  EntityExtractor
	sanitizer  *Sanitizer
	store      PredictionStore // nil disables persistence
	threshold  float64
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline.
//
// # Inputs
//
//   - classifier: Intent model client. Must not be nil.
//   - extractor: NER model client. Must not be nil.
//   - sanitizer: Span sanitizer. Must not be nil.
//   - store: Prediction cache. Nil disables persistence (tests, no cache dir).
//   - threshold: Confidence threshold. Zero or negative uses the default.
//   - logger: Logger instance. Nil defaults to slog.Default().
//
// # Outputs
//
//   - *Pipeline: The constructed pipeline. Never nil on success.
//   - error: Non-nil if a required collaborator is nil.
func NewPipeline(classifier IntentClassifier, extractor EntityExtractor, sanitizer *Sanitizer,
	store PredictionStore, threshold float64, logger *slog.Logger) (*Pipeline, error) {

	if classifier == nil {
		return nil, fmt.Errorf("classifier must not be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor must not be nil")
	}
	if sanitizer == nil {
		return nil, fmt.Errorf("sanitizer must not be nil")
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier: classifier,
		extractor:  extractor,
		sanitizer:  sanitizer,
		store:      store,
		threshold:  threshold,
		logger:     logger,
	}, nil
}

// Warm validates both model collaborators. Called once at startup; an
// unreachable model backend is a startup failure, never a per-turn error.
func (p *Pipeline) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.classifier.Warm(ctx) })
	g.Go(func() error { return p.extractor.Warm(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("model warm-up: %w", err)
	}
	return nil
}

// Analyze runs one utterance through the full NLU stage.
//
// # Description
//
//  1. Checks the prediction cache (when configured).
//  2. On a miss, calls the classifier and the extractor in parallel and
//     saves the raw result best-effort.
//  3. Applies the confidence threshold (low confidence demotes to unknown).
//  4. Sanitizes and supplements the spans.
//
// # Inputs
//
//   - ctx: Context for cancellation/timeout. Must not be nil.
//   - utterance: The (already autocorrected) user input. Must be non-empty.
//
// # Outputs
//
//   - Analysis: Post-threshold intent, sanitized spans, and any notice.
//   - error: Non-nil only if a model call fails.
//
// # Thread Safety
//
// Safe for concurrent use.
func (p *Pipeline) Analyze(ctx context.Context, utterance string) (Analysis, error) {
	ctx, span := tracer.Start(ctx, "nlu.Pipeline.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("query_preview", truncate(utterance, 80)),
	)

	pred, cached, err := p.predict(ctx, utterance)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return Analysis{}, err
	}

	intent := pred.Intent
	if intent.Intent != IntentUnknown && intent.Confidence < p.threshold {
		p.logger.Debug("demoting low-confidence prediction",
			slog.String("intent", string(intent.Intent)),
			slog.Float64("confidence", intent.Confidence),
			slog.Float64("threshold", p.threshold),
		)
		RecordLowConfidence()
		intent.Intent = IntentUnknown
	}
	RecordIntent(intent.Intent)

	entities, notice := p.sanitizer.Sanitize(utterance, pred.Entities)

	span.SetAttributes(
		attribute.String("intent", string(intent.Intent)),
		attribute.Float64("confidence", intent.Confidence),
		attribute.Int("entity_count", len(entities)),
		attribute.Bool("cache_hit", cached),
		attribute.String("notice", string(notice)),
	)

	return Analysis{Intent: intent, Entities: entities, Notice: notice}, nil
}

// predict returns the raw model prediction for utterance, via the cache
// when possible. The bool reports whether the result came from the cache.
func (p *Pipeline) predict(ctx context.Context, utterance string) (*Prediction, bool, error) {
	key := PredictionKey(utterance, p.classifier.Model(), p.extractor.Model())

	if p.store != nil {
		cached, err := p.store.Load(ctx, key)
		if err != nil {
			// Storage trouble must not fail the turn; fall through to the models.
			p.logger.Warn("prediction cache load failed",
				slog.String("error", err.Error()),
			)
		}
		if cached != nil {
			RecordCacheOutcome("hit")
			return cached, true, nil
		}
		RecordCacheOutcome("miss")
	}

	var pred Prediction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ip, err := p.classifier.Classify(gctx, utterance)
		if err != nil {
			return err
		}
		pred.Intent = ip
		return nil
	})
	g.Go(func() error {
		spans, err := p.extractor.Extract(gctx, utterance)
		if err != nil {
			return err
		}
		pred.Entities = spans
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	if p.store != nil {
		if err := p.store.Save(ctx, key, &pred); err != nil {
			p.logger.Warn("prediction cache save failed",
				slog.String("error", err.Error()),
			)
			RecordCacheOutcome("save_error")
		}
	}
	return &pred, false, nil
}

// truncate shortens s for span attributes and log lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
