// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pawmatch

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all PawMatch routes with the router.
//
// Description:
//
//	Registers the conversation endpoints under /v1 plus the operational
//	endpoints at the root. The router should already have any required
//	middleware applied.
//
// Inputs:
//
//	router - The Gin engine
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/chat - Run one conversation turn (creates session on demand)
//	GET  /v1/sessions/:id - Get session state
//	DELETE /v1/sessions/:id - Discard a session
//	POST /v1/sessions/:id/reset - Clear a session's query slots
//	GET  /healthz - Health check
//	GET  /metrics - Prometheus metrics
//
// Example:
//
//	handlers := pawmatch.NewHandlers(manager, controller, logger)
//	router := gin.New()
//	pawmatch.RegisterRoutes(router, handlers)
func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", handlers.HandleChat)

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:id", handlers.HandleGetSession)
			sessions.DELETE("/:id", handlers.HandleDeleteSession)
			sessions.POST("/:id/reset", handlers.HandleResetSession)
		}
	}

	router.GET("/healthz", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
