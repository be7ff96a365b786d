// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
	"github.com/inkwell-ai/inkwell/services/engine/history"
)

// QuestionAnswerer is the pipeline entry point consumed by the HTTP
// layer.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, docID, question, selectedText string) (*datatypes.AnswerResult, error)
}

// ChatSendRequest is the POST /v1/chat/send body.
type ChatSendRequest struct {
	DocID        string `json:"doc_id" binding:"required"`
	Message      string `json:"message" binding:"required" validate:"maxmsgbytes"`
	SelectedText string `json:"selected_text" validate:"maxdocbytes"`
}

// HandleChatSend answers one chat turn. Blocked and
// insufficient-evidence outcomes are normal structured responses, not
// HTTP errors; only internal failures map to 500.
//
// Successfully answered turns are persisted to the conversation
// history so later questions can be grounded on a summary of them.
// historyStore may be nil when persistence is disabled.
func HandleChatSend(pipeline QuestionAnswerer, historyStore history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := engineTracer.Start(c.Request.Context(), "HandleChatSend")
		defer span.End()

		var req ChatSendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := requestValidate.Struct(&req); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message too large"})
			return
		}

		result, err := pipeline.AnswerQuestion(ctx, req.DocID, req.Message, req.SelectedText)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("chat pipeline failed", "doc_id", req.DocID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if result.Status == datatypes.StatusOK && historyStore != nil {
			if err := historyStore.Save(ctx, req.DocID, req.Message, result.Generation); err != nil {
				// The answer is already produced; losing one history
				// turn is not worth failing the request.
				slog.Warn("failed to persist conversation turn",
					"doc_id", req.DocID, "error", err)
			}
		}

		c.JSON(http.StatusOK, result)
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
