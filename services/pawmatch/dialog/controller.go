// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/pawmatch/services/pawmatch/config"
	"github.com/AleutianAI/pawmatch/services/pawmatch/nlu"
)

// =============================================================================
// Controller
// =============================================================================

// Analyzer produces the NLU result for one utterance. *nlu.Pipeline is the
// production implementation; tests substitute fakes.
type Analyzer interface {
	Analyze(ctx context.Context, utterance string) (nlu.Analysis, error)
}

// Reply is the controller's output for one turn.
type Reply struct {
	// Text is the rendered reply, always from a fixed template.
	Text string `json:"text"`

	// State is the conversation state after the turn.
	State State `json:"state"`

	// Query is the search payload, set only on turns that triggered a
	// search echo (required slots filled).
	Query *Query `json:"query,omitempty"`
}

// Small-talk shortcuts, checked before the model calls. These exact
// utterances are so frequent that classifying them wastes a model roundtrip.
var (
	negativeWords = []string{"no", "nope", "nah"}
	greetingWords = []string{"hi", "hey", "hello"}
	resetWords    = []string{"reset", "restart", "new chat"}
)

// Controller owns the per-session turn loop: it routes each turn's intent
// to a handler, merges newly extracted entities into session state
// (applying canonicalization), decides the next prompt or search trigger,
// and renders the reply text.
//
// # Description
//
// The merge policy is last-write-wins per slot: a new extraction for an
// already-filled slot overwrites it, which is how corrections ("actually
// change to cat") work without a dedicated correction intent. A species
// overwrite additionally clears the breed and fur-length slots, since both
// are species-scoped.
//
// # Thread Safety
//
// Safe for concurrent use across sessions. A single session must be
// processed strictly turn-synchronously (see Session).
type Controller struct {
	analyzer  Analyzer
	corrector *nlu.Autocorrector
	syn       *config.SynonymTable
	tmpl      *config.Templates
	searcher  Searcher
	logger    *slog.Logger
}

// NewController creates a Controller.
//
// # Inputs
//
//   - analyzer: NLU pipeline. Must not be nil.
//   - corrector: Typo corrector. Must not be nil.
//   - syn: Synonym table for merge-time canonicalization. Must not be nil.
//   - tmpl: Reply templates. Must not be nil.
//   - searcher: Search trigger sink. Nil defaults to the logging stub.
//   - logger: Logger instance. Nil defaults to slog.Default().
//
// # Outputs
//
//   - *Controller: The constructed controller. Never nil on success.
//   - error: Non-nil if a required collaborator is nil.
func NewController(analyzer Analyzer, corrector *nlu.Autocorrector, syn *config.SynonymTable,
	tmpl *config.Templates, searcher Searcher, logger *slog.Logger) (*Controller, error) {

	if analyzer == nil {
		return nil, fmt.Errorf("analyzer must not be nil")
	}
	if corrector == nil {
		return nil, fmt.Errorf("corrector must not be nil")
	}
	if syn == nil {
		return nil, fmt.Errorf("synonym table must not be nil")
	}
	if tmpl == nil {
		return nil, fmt.Errorf("templates must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if searcher == nil {
		searcher = NewLoggingSearcher(logger)
	}
	return &Controller{
		analyzer:  analyzer,
		corrector: corrector,
		syn:       syn,
		tmpl:      tmpl,
		searcher:  searcher,
		logger:    logger,
	}, nil
}

// HandleTurn processes one utterance against one session.
//
// # Description
//
// Order of operations: ended check → empty-input greeting → small-talk and
// control shortcuts → autocorrect → NLU → first-turn greeting → unknown
// recovery → intent-switch reset → intent routing. The turn is fully
// processed before the next one may start.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - s: The session. Must not be nil; mutated in place.
//   - input: The raw user utterance.
//
// # Outputs
//
//   - Reply: The templated reply, post-turn state, and optional search payload.
//   - error: Non-nil only on model transport failure, which is fatal to the
//     session by contract (models are validated at startup).
func (c *Controller) HandleTurn(ctx context.Context, s *Session, input string) (Reply, error) {
	ctx, span := tracer.Start(ctx, "dialog.Controller.HandleTurn")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", s.ID))

	s.UpdatedAt = time.Now()

	// A goodbye is terminal: later turns get the farewell echo and no merges.
	if s.Ended {
		return c.reply(s, c.tmpl.FarewellEcho), nil
	}

	input = strings.TrimSpace(input)
	lower := strings.ToLower(input)

	if input == "" {
		s.Greeted = true
		return c.reply(s, c.tmpl.Greeting), nil
	}

	if contains(negativeWords, lower) {
		return c.reply(s, c.tmpl.Dismissal), nil
	}
	if contains(greetingWords, lower) {
		first := !s.Greeted
		s.Greeted = true
		if first {
			return c.reply(s, c.tmpl.Greeting), nil
		}
		return c.reply(s, c.tmpl.HelloAgain), nil
	}
	if contains(resetWords, lower) {
		s.ResetSlots()
		return c.reply(s, c.tmpl.Greeting), nil
	}

	corrected := c.corrector.Correct(input)
	if corrected != input {
		c.logger.Debug("autocorrected input",
			slog.String("from", input),
			slog.String("to", corrected),
		)
	}

	analysis, err := c.analyzer.Analyze(ctx, corrected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nlu failed")
		return Reply{}, fmt.Errorf("turn analysis: %w", err)
	}

	intent := analysis.Intent.Intent
	span.SetAttributes(
		attribute.String("intent", string(intent)),
		attribute.Float64("confidence", analysis.Intent.Confidence),
		attribute.Int("entity_count", len(analysis.Entities)),
	)
	turnTotal.WithLabelValues(string(intent)).Inc()

	if !s.Greeted {
		s.Greeted = true
		if intent == nlu.IntentGreeting {
			return c.reply(s, c.tmpl.Greeting), nil
		}
	}

	if intent == nlu.IntentUnknown {
		return c.handleUnknown(ctx, s, corrected, analysis)
	}

	// An intent switch abandons the current query: "how do I care for a
	// kitten?" mid-search must not keep prompting for a location.
	if isNewIntent(intent, s.LastIntent) {
		c.logger.Debug("intent switch, resetting slots",
			slog.String("from", string(s.LastIntent)),
			slog.String("to", string(intent)),
		)
		s.ResetSlots()
	}
	s.LastIntent = intent

	switch intent {
	case nlu.IntentFindPet:
		return c.handleFindPet(ctx, s, analysis)
	case nlu.IntentPetCare:
		return c.reply(s, c.tmpl.CareAdvice), nil
	case nlu.IntentThankYou:
		return c.reply(s, c.tmpl.Thanks), nil
	case nlu.IntentGreeting:
		return c.reply(s, c.tmpl.HelloAgain), nil
	case nlu.IntentGoodbye:
		s.Ended = true
		return c.reply(s, c.tmpl.Farewell), nil
	default:
		return c.reply(s, c.tmpl.Clarification), nil
	}
}

// =============================================================================
// Intent Handlers
// =============================================================================

// handleFindPet merges this turn's entities, then either prompts for the
// highest-priority missing required slot or echoes the search.
func (c *Controller) handleFindPet(ctx context.Context, s *Session, analysis nlu.Analysis) (Reply, error) {
	if r, ok := c.noticeReply(s, analysis.Notice); ok {
		return r, nil
	}
	if len(analysis.Entities) > 0 {
		return c.mergeAndRespond(ctx, s, analysis.Entities), nil
	}
	if missing := s.Query.MissingRequired(); len(missing) > 0 {
		return c.reply(s, c.tmpl.Prompt(string(missing[0]))), nil
	}
	return c.confirmAndSearch(ctx, s, nil), nil
}

// handleUnknown recovers unclear turns. Mid-search, a single descriptive
// token ("fluffy", "penang") is usually an answer to the last prompt: it is
// re-extracted inside a pseudo-query that gives the NER model a full
// sentence to work with.
func (c *Controller) handleUnknown(ctx context.Context, s *Session, corrected string, analysis nlu.Analysis) (Reply, error) {
	if s.LastIntent != nlu.IntentFindPet {
		return c.reply(s, c.tmpl.Clarification), nil
	}

	if r, ok := c.noticeReply(s, analysis.Notice); ok {
		return r, nil
	}

	entities := analysis.Entities
	if len(entities) == 0 {
		if token, ok := loneDescriptiveToken(corrected); ok {
			species := strings.ToLower(s.Query.Species)
			if species == "" {
				species = "pet"
			}
			pseudo := fmt.Sprintf("I want a %s %s", token, species)
			retry, err := c.analyzer.Analyze(ctx, pseudo)
			if err != nil {
				return Reply{}, fmt.Errorf("pseudo-query analysis: %w", err)
			}
			entities = retry.Entities
		}
	}

	if len(entities) > 0 {
		return c.mergeAndRespond(ctx, s, entities), nil
	}

	if len(s.Query.MissingRequired()) < len(nlu.RequiredSlots) {
		// Some required slot is already set; ask for detail, not a restart.
		return c.reply(s, c.tmpl.ClarifyDetails), nil
	}
	return c.reply(s, c.tmpl.ClarifyRequired), nil
}

// =============================================================================
// Merge Policy
// =============================================================================

// mergeAndRespond canonicalizes and merges the spans (last-write-wins),
// collects per-slot confirmation fragments, and closes with either the next
// prompt or the search echo.
func (c *Controller) mergeAndRespond(ctx context.Context, s *Session, spans []nlu.EntitySpan) Reply {
	var confirms []string

	// Species first: a species change invalidates the species-scoped slots
	// before their spans (if any) merge in this same turn.
	for _, span := range spans {
		if span.Slot != nlu.SlotSpecies {
			continue
		}
		canonical := c.syn.Canonicalize(string(nlu.SlotSpecies), span.Text)
		switch prev := s.Query.Species; {
		case prev != "" && prev != canonical:
			s.Query.Breed = ""
			s.Query.FurLength = ""
			confirms = append(confirms, fmt.Sprintf(c.tmpl.ConfirmUpdated, "species", canonical))
			slotMergeTotal.WithLabelValues(string(nlu.SlotSpecies), "updated").Inc()
		case prev == "":
			confirms = append(confirms, fmt.Sprintf(c.tmpl.ConfirmAdded, "species", canonical))
			slotMergeTotal.WithLabelValues(string(nlu.SlotSpecies), "added").Inc()
		}
		s.Query.Species = canonical
	}

	for _, span := range spans {
		if span.Slot == nlu.SlotSpecies {
			continue
		}
		canonical := c.syn.Canonicalize(string(span.Slot), span.Text)
		readable := strings.ReplaceAll(string(span.Slot), "_", " ")
		prev := s.Query.Get(span.Slot)
		switch {
		case prev != "" && prev != canonical:
			confirms = append(confirms, fmt.Sprintf(c.tmpl.ConfirmUpdated, readable, canonical))
			slotMergeTotal.WithLabelValues(string(span.Slot), "updated").Inc()
		case prev == "":
			confirms = append(confirms, fmt.Sprintf(c.tmpl.ConfirmAdded, readable, canonical))
			slotMergeTotal.WithLabelValues(string(span.Slot), "added").Inc()
		}
		s.Query.Set(span.Slot, canonical)
	}

	if missing := s.Query.MissingRequired(); len(missing) > 0 {
		confirms = append(confirms, c.tmpl.Prompt(string(missing[0])))
		return c.reply(s, strings.Join(confirms, " "))
	}
	return c.confirmAndSearch(ctx, s, confirms)
}

// confirmAndSearch renders the search echo and hands the completed query to
// the searcher. Searcher errors are logged, never user-visible — the
// listing backend is an external stub and the echo was already chosen.
func (c *Controller) confirmAndSearch(ctx context.Context, s *Session, confirms []string) Reply {
	q := s.Query
	echo := fmt.Sprintf(c.tmpl.SearchEcho, q.Description(), q.Location)
	text := strings.Join(append(confirms, echo), " ")

	searchTriggerTotal.Inc()
	if err := c.searcher.Search(ctx, q); err != nil {
		c.logger.Error("search dispatch failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}

	r := c.reply(s, text)
	r.Query = &q
	return r
}

// =============================================================================
// Helpers
// =============================================================================

// noticeReply maps a sanitizer notice to its fixed template.
func (c *Controller) noticeReply(s *Session, notice nlu.Notice) (Reply, bool) {
	switch notice {
	case nlu.NoticeGarbled:
		return c.reply(s, c.tmpl.Garbled), true
	case nlu.NoticeUnsupportedSpecies:
		return c.reply(s, c.tmpl.UnsupportedSpecies), true
	default:
		return Reply{}, false
	}
}

func (c *Controller) reply(s *Session, text string) Reply {
	return Reply{Text: text, State: s.State()}
}

// isNewIntent reports a genuine intent switch: both sides known and different.
func isNewIntent(intent, prev nlu.Intent) bool {
	return intent != nlu.IntentUnknown && intent != "" &&
		prev != nlu.IntentUnknown && prev != "" &&
		intent != prev
}

// loneDescriptiveToken reports whether the utterance is a single word long
// enough to be a descriptor rather than a short code.
func loneDescriptiveToken(text string) (string, bool) {
	tokens := strings.Fields(text)
	if len(tokens) == 1 && len(tokens[0]) > 2 {
		return tokens[0], true
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
