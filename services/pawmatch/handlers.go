// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pawmatch exposes the conversational adoption front-end over HTTP.
// The same Controller drives both this surface and the CLI chat loop; the
// handlers only own session lookup and request/response shapes.
package pawmatch

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/pawmatch/services/pawmatch/dialog"
)

// =============================================================================
// Request / Response Types
// =============================================================================

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	// SessionID continues an existing conversation. Empty starts a new one.
	SessionID string `json:"session_id"`

	// Message is the raw user utterance. May be empty (greeting turn).
	Message string `json:"message"`
}

// ChatResponse is the reply for one turn.
type ChatResponse struct {
	SessionID string        `json:"session_id"`
	Reply     string        `json:"reply"`
	State     dialog.State  `json:"state"`
	Query     *dialog.Query `json:"query,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers wires the session manager and the dialog controller to Gin.
//
// Thread Safety: Safe for concurrent use. Per-session turn ordering is the
// caller's responsibility; interleaved turns on one session ID are not
// supported.
type Handlers struct {
	manager    *dialog.SessionManager
	controller *dialog.Controller
	logger     *slog.Logger
}

// NewHandlers creates the HTTP handlers. A nil logger defaults to
// slog.Default().
func NewHandlers(manager *dialog.SessionManager, controller *dialog.Controller, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		manager:    manager,
		controller: controller,
		logger:     logger,
	}
}

// HandleChat handles POST /v1/chat.
//
// Description:
//
//	Runs one conversation turn. When session_id is empty a new session is
//	created and returned in the response; clients carry it on subsequent
//	turns.
//
// Response:
//
//	200 OK: ChatResponse
//	400 Bad Request: Malformed body
//	404 Not Found: Unknown session ID
//	502 Bad Gateway: Model call failed
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleChat")

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_BODY",
		})
		return
	}

	var s *dialog.Session
	if req.SessionID == "" {
		s = h.manager.Create()
	} else {
		var err error
		s, err = h.manager.Get(req.SessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "SESSION_NOT_FOUND",
			})
			return
		}
	}

	reply, err := h.controller.HandleTurn(c.Request.Context(), s, req.Message)
	if err != nil {
		logger.Error("turn failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "model backend unavailable",
			Code:  "MODEL_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		SessionID: s.ID,
		Reply:     reply.Text,
		State:     reply.State,
		Query:     reply.Query,
	})
}

// HandleGetSession handles GET /v1/sessions/:id.
//
// Response:
//
//	200 OK: The session (slot state, flags, timestamps)
//	404 Not Found: Unknown session ID
func (h *Handlers) HandleGetSession(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, s)
}

// HandleDeleteSession handles DELETE /v1/sessions/:id. Deleting an unknown
// ID still returns 204, matching the manager's no-op semantics.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	h.manager.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// HandleResetSession handles POST /v1/sessions/:id/reset.
//
// Description:
//
//	Clears the session's query and intent context but keeps the session ID
//	and greeted flag, mirroring the in-conversation "reset" command.
//
// Response:
//
//	200 OK: The reset session
//	404 Not Found: Unknown session ID
func (h *Handlers) HandleResetSession(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}
	s.ResetSlots()
	c.JSON(http.StatusOK, s)
}

// HandleHealth handles GET /healthz. Model availability was validated at
// startup, so a live process is a healthy process.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.manager.Len(),
	})
}

// getOrCreateRequestID returns the X-Request-ID header, minting one when the
// client did not send it.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}
