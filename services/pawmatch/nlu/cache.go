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

// =============================================================================
// PredictionStore — NLU Result Persistence
// =============================================================================
//
// Model predictions are deterministic per fixed weights, and real traffic
// repeats itself ("hi", "dog", "kl" account for a large share of turns).
// This store persists per-utterance NLU results in BadgerDB between
// service restarts.
//
// Design choices:
//
//	1. BadgerDB: prediction reuse is service infrastructure, not user data.
//	   Point lookups of small values do not need a search index; BadgerDB is
//	   embedded — no network call, no availability dependency.
//
//	2. Utterance hash as cache key: SHA256(normalized utterance + both model
//	   names). Swapping either model artifact produces different keys, so
//	   stale predictions become unreachable without an invalidation API.
//
//	3. BadgerDB native TTL: 7-day expiry is enforced by BadgerDB's GC, not
//	   by application code. Expired keys return ErrKeyNotFound, which the
//	   store treats as a cache miss.
//
//	4. RAW model output is cached, not sanitized output: the sanitizer is
//	   pure and cheap, and evolves independently of the models. Caching its
//	   input keeps rule changes effective immediately.
//
// Storage layout:
//
//	nlu/pred/v1/{utteranceHash}  →  gob-encoded Prediction
//	                                TTL: 7 days

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AleutianAI/pawmatch/services/pawmatch/storage/badger"
)

// predictionCacheDefaultTTL is the default lifetime of a cached prediction.
const predictionCacheDefaultTTL = 7 * 24 * time.Hour

// predictionCacheKeyPrefix is prepended to the utterance hash to form the
// BadgerDB key. Versioned (v1) to allow future format changes without
// collision.
const predictionCacheKeyPrefix = "nlu/pred/v1/"

// errCacheMiss is a sentinel used internally to distinguish "key not found"
// (a normal cache miss) from a genuine storage error.
var errCacheMiss = errors.New("cache miss")

// Prediction is the raw, unsanitized NLU output for one utterance — the
// unit of caching.
type Prediction struct {
	Intent   IntentPrediction
	Entities []EntitySpan
}

// PredictionStore persists per-utterance model predictions across service
// restarts.
//
// Both methods are nil-safe at the call site: the Pipeline checks for a nil
// PredictionStore and skips persistence, operating in model-only mode. This
// is the correct behavior for tests and for deployments without a cache
// directory configured.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type PredictionStore interface {
	// Load retrieves the cached prediction for an utterance hash.
	//
	// Returns (nil, nil) on cache miss (key absent or TTL expired).
	// Returns (nil, error) on storage failure.
	Load(ctx context.Context, utteranceHash string) (*Prediction, error)

	// Save persists a prediction under the utterance hash. The store
	// applies the TTL automatically. A non-nil error means storage failure;
	// the caller logs it as a warning and continues — persistence failure
	// is non-fatal.
	Save(ctx context.Context, utteranceHash string, pred *Prediction) error
}

// PredictionKey computes the cache key for an utterance: hex SHA256 of the
// normalized (lower-cased, whitespace-collapsed) utterance plus both model
// identifiers.
func PredictionKey(utterance, intentModel, nerModel string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(utterance)), " ")
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(intentModel))
	h.Write([]byte{0})
	h.Write([]byte(nerModel))
	return hex.EncodeToString(h.Sum(nil))
}

// =============================================================================
// BadgerPredictionStore
// =============================================================================

// BadgerPredictionStore implements PredictionStore backed by a BadgerDB
// instance. The DB is opened at startup with its own path and injected; the
// store does not own the DB lifecycle.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type BadgerPredictionStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerPredictionStore creates a BadgerPredictionStore backed by the
// given DB instance.
//
// # Inputs
//
//   - db: Opened BadgerDB wrapper. Must not be nil.
//   - ttl: Lifetime for each cached entry. Pass 0 for the default (7 days).
//   - logger: Logger for hit/miss diagnostics. May be nil.
func NewBadgerPredictionStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerPredictionStore {
	if db == nil {
		panic("NewBadgerPredictionStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = predictionCacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerPredictionStore{db: db, ttl: ttl, logger: logger}
}

// Load retrieves the cached prediction for an utterance hash. Returns
// (nil, nil) on miss, (nil, error) on storage or decode failure.
func (s *BadgerPredictionStore) Load(ctx context.Context, utteranceHash string) (*Prediction, error) {
	key := []byte(predictionCacheKeyPrefix + utteranceHash)

	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errCacheMiss) {
		s.logger.Debug("prediction cache: miss", slog.String("hash", shortHash(utteranceHash)))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prediction cache load: %w", err)
	}

	var pred Prediction
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&pred); err != nil {
		return nil, fmt.Errorf("prediction cache decode: %w", err)
	}

	s.logger.Debug("prediction cache: hit",
		slog.String("hash", shortHash(utteranceHash)),
		slog.String("intent", string(pred.Intent.Intent)),
	)
	return &pred, nil
}

// Save persists a prediction with the configured TTL.
func (s *BadgerPredictionStore) Save(ctx context.Context, utteranceHash string, pred *Prediction) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pred); err != nil {
		return fmt.Errorf("prediction cache encode: %w", err)
	}

	key := []byte(predictionCacheKeyPrefix + utteranceHash)
	err := s.db.WithWriteTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("prediction cache save: %w", err)
	}
	return nil
}

// shortHash truncates a hex hash for log lines.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
