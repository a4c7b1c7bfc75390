// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dialog owns the conversation state machine: per-session slot
// state, the turn controller that merges NLU results into it, and the
// search trigger that fires once the required slots are filled.
package dialog

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/pawmatch/services/pawmatch/nlu"
)

// =============================================================================
// Conversation State
// =============================================================================

// State is the coarse position of a conversation. It is derived from slot
// state and flags, never stored — the only stored facts are the slot
// values, the greeted flag, the last intent, and the ended flag.
type State string

const (
	StateAwaitingSpecies  State = "AWAITING_SPECIES"
	StateAwaitingLocation State = "AWAITING_LOCATION"
	StateReadyToSearch    State = "READY_TO_SEARCH"
	StateCareQA           State = "CARE_QA"
	StateEnded            State = "ENDED"
)

// =============================================================================
// Slot State
// =============================================================================

// Query is the adoption search query being assembled across turns. Fields
// hold canonical display values or "" (unset) — the merge step
// canonicalizes before writing, so a raw surface form never lands here.
type Query struct {
	Species   string `json:"species,omitempty"`
	Breed     string `json:"breed,omitempty"`
	Color     string `json:"color,omitempty"`
	Location  string `json:"location,omitempty"`
	Age       string `json:"age,omitempty"`
	Size      string `json:"size,omitempty"`
	Gender    string `json:"gender,omitempty"`
	FurLength string `json:"fur_length,omitempty"`
}

// Get returns the value of the named slot ("" when unset or unknown).
func (q *Query) Get(slot nlu.Slot) string {
	switch slot {
	case nlu.SlotSpecies:
		return q.Species
	case nlu.SlotBreed:
		return q.Breed
	case nlu.SlotColor:
		return q.Color
	case nlu.SlotLocation:
		return q.Location
	case nlu.SlotAge:
		return q.Age
	case nlu.SlotSize:
		return q.Size
	case nlu.SlotGender:
		return q.Gender
	case nlu.SlotFurLength:
		return q.FurLength
	default:
		return ""
	}
}

// Set writes the named slot. Unknown slots are ignored — they were already
// rejected (and logged) at the model boundary.
func (q *Query) Set(slot nlu.Slot, value string) {
	switch slot {
	case nlu.SlotSpecies:
		q.Species = value
	case nlu.SlotBreed:
		q.Breed = value
	case nlu.SlotColor:
		q.Color = value
	case nlu.SlotLocation:
		q.Location = value
	case nlu.SlotAge:
		q.Age = value
	case nlu.SlotSize:
		q.Size = value
	case nlu.SlotGender:
		q.Gender = value
	case nlu.SlotFurLength:
		q.FurLength = value
	}
}

// MissingRequired returns the unset required slots in prompt-priority order
// (species before location).
func (q *Query) MissingRequired() []nlu.Slot {
	var missing []nlu.Slot
	for _, slot := range nlu.RequiredSlots {
		if q.Get(slot) == "" {
			missing = append(missing, slot)
		}
	}
	return missing
}

// =============================================================================
// Session
// =============================================================================

// Session is the per-conversation state. Created with all slots unset,
// mutated turn-by-turn by the Controller, discarded at conversation end —
// there is no persistence across process restarts.
//
// # Thread Safety
//
// A session is owned by one conversation and processed strictly
// turn-synchronously; it is NOT safe for concurrent turns. The
// SessionManager only guards the session map itself.
type Session struct {
	ID         string     `json:"id"`
	Query      Query      `json:"query"`
	Greeted    bool       `json:"greeted"`
	LastIntent nlu.Intent `json:"last_intent,omitempty"`
	Ended      bool       `json:"ended"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewSession creates an empty session with a fresh ID.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// State derives the conversation state from the stored facts.
func (s *Session) State() State {
	switch {
	case s.Ended:
		return StateEnded
	case s.LastIntent == nlu.IntentPetCare:
		return StateCareQA
	case s.Query.Species == "":
		return StateAwaitingSpecies
	case s.Query.Location == "":
		return StateAwaitingLocation
	default:
		return StateReadyToSearch
	}
}

// ResetSlots clears the query and intent context but keeps the greeted
// flag — used on intent switches and the "reset" command.
func (s *Session) ResetSlots() {
	s.Query = Query{}
	s.LastIntent = ""
	s.Ended = false
	s.UpdatedAt = time.Now()
}

// =============================================================================
// SessionManager
// =============================================================================

// SessionManager holds the live sessions for the HTTP surface. Each session
// is independently owned with no cross-session interaction; the mutex
// guards only the map.
//
// # Thread Safety
//
// Safe for concurrent use.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewSessionManager creates an empty manager. A nil logger defaults to
// slog.Default().
func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create registers and returns a new empty session.
func (m *SessionManager) Create() *Session {
	s := NewSession()
	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	sessionGauge.Set(float64(count))
	m.logger.Debug("session created", slog.String("session_id", s.ID))
	return s
}

// Get returns the session with the given ID.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return s, nil
}

// Delete discards a session. Deleting an unknown ID is a no-op.
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	sessionGauge.Set(float64(count))
	m.logger.Debug("session deleted", slog.String("session_id", id))
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
