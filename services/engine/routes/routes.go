// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes maps HTTP endpoints onto the engine handlers.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkwell-ai/inkwell/services/engine/handlers"
	"github.com/inkwell-ai/inkwell/services/engine/history"
)

// SetupRoutes registers all engine endpoints on the router.
func SetupRoutes(router *gin.Engine, analyzer handlers.DocumentAnalyzer,
	pipeline handlers.QuestionAnswerer, historyStore history.Store) {

	router.GET("/healthz", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/analyze", handlers.HandleAnalyze(analyzer))
		v1.POST("/chat/send", handlers.HandleChatSend(pipeline, historyStore))
	}
}
