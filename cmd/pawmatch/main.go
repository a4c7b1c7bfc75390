// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pawmatch runs the conversational pet-adoption front-end.
//
// The process needs the model sidecar (intent classifier + NER) running and
// healthy before it will accept a single turn; startup aborts otherwise.
//
// Usage:
//
//	# Interactive terminal chat
//	pawmatch chat
//
//	# HTTP API server
//	pawmatch serve --addr :8080
//
// Environment:
//
//	PAWMATCH_MODEL_URL      Model sidecar base URL (default http://localhost:8571)
//	PAWMATCH_INTENT_MODEL   Intent model identifier (default minilm-logreg-v2)
//	PAWMATCH_NER_MODEL      NER model identifier (default pawmatch-ner-distilbert)
//	PAWMATCH_CACHE_DIR      Prediction cache directory (default ~/.pawmatch/cache/predictions)
//	PAWMATCH_TRACE_STDOUT   Set to 1 to export OTel spans to stdout
//
// Example requests against the server:
//
//	curl http://localhost:8080/healthz
//
//	curl -X POST http://localhost:8080/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "I want to adopt a dog in Penang"}'
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/pawmatch/services/pawmatch/config"
	"github.com/AleutianAI/pawmatch/services/pawmatch/dialog"
	"github.com/AleutianAI/pawmatch/services/pawmatch/nlu"
	badgerstore "github.com/AleutianAI/pawmatch/services/pawmatch/storage/badger"
)

// Flag values shared by the chat and serve commands.
var (
	modelURL  string
	threshold float64
	cacheDir  string
	noCache   bool
	serveAddr string
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "pawmatch",
	Short: "Conversational pet-adoption assistant",
	Long: `PawMatch is the conversational front-end for pet adoption search:
it classifies each utterance, extracts search slots (species, breed, color,
location, ...), and assembles an adoption query across turns.`,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session in the terminal",
	Run:   runChatCommand,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Run:   runServeCommand,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelURL, "model-url", "",
		"Model sidecar base URL (default $PAWMATCH_MODEL_URL or http://localhost:8571)")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", nlu.DefaultConfidenceThreshold,
		"Minimum intent confidence before falling back to clarification")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "",
		"Prediction cache directory (default $PAWMATCH_CACHE_DIR or ~/.pawmatch/cache/predictions)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false,
		"Disable the on-disk prediction cache")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog handler. Interactive chat
// keeps the terminal clean by logging at WARN unless --debug is set.
func setupLogging(interactive bool) *slog.Logger {
	level := slog.LevelInfo
	if interactive {
		level = slog.LevelWarn
	}
	if debugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// setupTracing installs a stdout span exporter when PAWMATCH_TRACE_STDOUT=1.
// Returns a shutdown function that flushes pending spans; it is a no-op when
// tracing is disabled (spans then go to the default no-op provider).
func setupTracing(logger *slog.Logger) func(context.Context) {
	if os.Getenv("PAWMATCH_TRACE_STDOUT") != "1" {
		return func(context.Context) {}
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Warn("stdout trace exporter unavailable, tracing disabled",
			slog.String("error", err.Error()),
		)
		return func(context.Context) {}
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	logger.Info("OTel stdout tracing enabled")

	return func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("trace provider shutdown failed", slog.String("error", err.Error()))
		}
	}
}

// stack bundles the wired collaborators shared by both commands.
type stack struct {
	pipeline   *nlu.Pipeline
	controller *dialog.Controller
	manager    *dialog.SessionManager
	cacheDB    *badgerstore.DB // nil when persistence is disabled
	logger     *slog.Logger
}

// Close releases the prediction cache database, if one was opened.
func (s *stack) Close() {
	if s.cacheDB == nil {
		return
	}
	if err := s.cacheDB.Close(); err != nil {
		s.logger.Warn("failed to close prediction cache", slog.String("error", err.Error()))
	}
}

// buildStack wires configuration, NLU, and dialog into a ready (but not yet
// warmed) stack.
//
// The prediction cache degrades gracefully: if the directory cannot be
// opened, the pipeline runs in in-memory-only mode with a warning rather
// than failing startup. Model availability is the opposite — the caller
// must Warm the pipeline and abort on error.
func buildStack(logger *slog.Logger) (*stack, error) {
	syn, err := config.LoadSynonyms()
	if err != nil {
		return nil, fmt.Errorf("load synonyms: %w", err)
	}
	tmpl, err := config.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	classifier := nlu.NewHTTPIntentClassifier(modelURL, logger)
	extractor := nlu.NewHTTPEntityExtractor(modelURL, logger)
	sanitizer := nlu.NewSanitizer(syn, logger)

	var store nlu.PredictionStore
	var cacheDB *badgerstore.DB
	if !noCache {
		dir := resolveCacheDir()
		if dir == "" {
			logger.Warn("no prediction cache directory available, persistence disabled")
		} else {
			db, err := badgerstore.OpenDB(badgerstore.Config{Dir: dir, Logger: logger})
			if err != nil {
				logger.Warn("prediction cache unavailable, persistence disabled",
					slog.String("dir", dir),
					slog.String("error", err.Error()),
				)
			} else {
				cacheDB = db
				store = nlu.NewBadgerPredictionStore(db, 0, logger)
				logger.Info("prediction cache opened", slog.String("dir", dir))
			}
		}
	}

	pipeline, err := nlu.NewPipeline(classifier, extractor, sanitizer, store, threshold, logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	corrector := nlu.NewAutocorrector(syn.KnownWords())
	controller, err := dialog.NewController(pipeline, corrector, syn, tmpl, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("build controller: %w", err)
	}

	return &stack{
		pipeline:   pipeline,
		controller: controller,
		manager:    dialog.NewSessionManager(logger),
		cacheDB:    cacheDB,
		logger:     logger,
	}, nil
}

// resolveCacheDir picks the prediction cache directory: flag, then env,
// then the per-user default. Empty means no usable location.
func resolveCacheDir() string {
	if cacheDir != "" {
		return cacheDir
	}
	if dir := os.Getenv("PAWMATCH_CACHE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pawmatch", "cache", "predictions")
}
