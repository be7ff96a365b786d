// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the engine over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/inkwell-ai/inkwell/services/engine/analysis"
	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
)

var engineTracer = otel.Tracer("inkwell.engine.handlers")

// DocumentAnalyzer is the analysis entry point consumed by the HTTP
// layer.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, docID, fullText string) ([]datatypes.AnalysisResult, error)
}

// AnalyzeRequest is the POST /v1/analyze body.
type AnalyzeRequest struct {
	DocID    string `json:"doc_id" binding:"required"`
	Contents string `json:"contents" binding:"required" validate:"maxdocbytes"`
}

// AnalyzeResponse carries per-sentence verdicts for the document.
type AnalyzeResponse struct {
	DocID   string                     `json:"doc_id"`
	Results []datatypes.AnalysisResult `json:"results"`
}

// HandleAnalyze runs incremental document analysis.
func HandleAnalyze(analyzer DocumentAnalyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := engineTracer.Start(c.Request.Context(), "HandleAnalyze")
		defer span.End()

		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := requestValidate.Struct(&req); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document too large"})
			return
		}

		results, err := analyzer.Analyze(ctx, req.DocID, req.Contents)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, analysis.ErrConsistency) {
				slog.Error("analysis consistency failure", "doc_id", req.DocID, "error", err)
			} else {
				slog.Error("document analysis failed", "doc_id", req.DocID, "error", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
			return
		}

		c.JSON(http.StatusOK, AnalyzeResponse{DocID: req.DocID, Results: results})
	}
}
