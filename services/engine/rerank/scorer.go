// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rerank scores retrieved evidence against the question with a
// cross-encoder relevance model and keeps the top-k chunks.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// maxScoreRetries bounds retries against the scorer service.
	maxScoreRetries = 3

	// initialRetryDelay is the delay before the first retry. Doubles
	// each attempt.
	initialRetryDelay = 1 * time.Second
)

// Scorer rates the relevance of each chunk to the question. The
// returned slice is the same length and order as chunks.
type Scorer interface {
	Score(ctx context.Context, question string, chunks []string) ([]float64, error)
}

// HTTPScorer calls a cross-encoder scoring service over HTTP.
//
// Thread Safety: safe for concurrent use.
type HTTPScorer struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPScorer wires a scorer client for the given base URL, e.g.
// "http://inkwell-scorer:8000".
func NewHTTPScorer(baseURL string, logger *slog.Logger) *HTTPScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPScorer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type scoreRequest struct {
	Question string   `json:"question"`
	Chunks   []string `json:"chunks"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score posts the (question, chunks) batch to the scoring service.
// Transient failures (network errors, 5xx) are retried with
// exponential backoff; 4xx fails immediately.
func (s *HTTPScorer) Score(ctx context.Context, question string, chunks []string) ([]float64, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(scoreRequest{Question: question, Chunks: chunks})
	if err != nil {
		return nil, fmt.Errorf("marshaling score request: %w", err)
	}

	var lastErr error
	delay := initialRetryDelay
	for attempt := 0; attempt <= maxScoreRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying scorer request",
				"attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		scores, retryable, err := s.post(ctx, payload)
		if err == nil {
			if len(scores) != len(chunks) {
				return nil, fmt.Errorf("scorer returned %d scores for %d chunks",
					len(scores), len(chunks))
			}
			return scores, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("scorer unreachable after %d retries: %w", maxScoreRetries, lastErr)
}

func (s *HTTPScorer) post(ctx context.Context, payload []byte) (scores []float64, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/rerank", bytes.NewBuffer(payload))
	if err != nil {
		return nil, false, fmt.Errorf("building score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("posting score request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("reading score response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500,
			fmt.Errorf("scorer returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed scoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, fmt.Errorf("decoding score response: %w", err)
	}
	return parsed.Scores, false, nil
}
