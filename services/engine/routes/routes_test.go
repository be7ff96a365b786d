// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
)

type noopAnalyzer struct{}

func (noopAnalyzer) Analyze(context.Context, string, string) ([]datatypes.AnalysisResult, error) {
	return nil, nil
}

type noopPipeline struct{}

func (noopPipeline) AnswerQuestion(context.Context, string, string, string) (*datatypes.AnswerResult, error) {
	return &datatypes.AnswerResult{Status: datatypes.StatusOK}, nil
}

func TestSetupRoutes_RegistersAllEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, noopAnalyzer{}, noopPipeline{}, nil)

	paths := make(map[string]string)
	for _, r := range router.Routes() {
		paths[r.Path] = r.Method
	}
	assert.Equal(t, http.MethodGet, paths["/healthz"])
	assert.Equal(t, http.MethodGet, paths["/metrics"])
	assert.Equal(t, http.MethodPost, paths["/v1/analyze"])
	assert.Equal(t, http.MethodPost, paths["/v1/chat/send"])
}

func TestHealthzResponds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, noopAnalyzer{}, noopPipeline{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
