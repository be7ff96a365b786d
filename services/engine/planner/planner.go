// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package planner classifies a user question into a retrieval plan:
// which strategy to run, what evidence categories to fetch, the
// search-optimized rewritten query, and the date window.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
	"github.com/inkwell-ai/inkwell/services/llm"
)

// platformEpoch is the earliest date any indexed content can carry.
// Date windows are clamped so the index is never queried before it.
var platformEpoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// defaultWindowYears is how far back the window reaches when the
// question names no time frame.
const defaultWindowYears = 1

const plannerSystemPrompt = `You are a query planner for a document-assistant over a news and
commentary corpus. Classify the user's question and produce a retrieval plan.

Strategies:
- "standard": factual or lookup question answerable from ranked evidence.
- "balanced": comparative question needing opposing perspectives side by side.
- "title_generation": the user wants title suggestions for the selected text.
- "no_retrieval": small talk or a question the conversation itself answers.
- "no_generate": hostile or abusive request; nothing should be produced.

Rules:
- rewritten_question: the search query with greetings and filler stripped,
  keywords kept. Empty for non-retrieval strategies.
- data_types: evidence categories among "article", "editorial", "commentary".
  Empty for non-retrieval strategies.
- date_start / date_end: ISO dates (YYYY-MM-DD) when the question names a
  time frame, otherwise empty.
- generation_required: false only when the user asks to see sources or
  evidence without a written answer.
- span_replacement_required: true only when the user asks to rewrite or
  replace the selected text in place.

Respond with a JSON object:
{"strategy": "...", "data_types": [...], "rewritten_question": "...",
 "date_start": "", "date_end": "", "group_filter": [...],
 "generation_required": true, "span_replacement_required": false}`

// planResponse is the raw model output before validation.
type planResponse struct {
	Strategy                string   `json:"strategy"`
	DataTypes               []string `json:"data_types"`
	RewrittenQuestion       string   `json:"rewritten_question"`
	DateStart               string   `json:"date_start"`
	DateEnd                 string   `json:"date_end"`
	GroupFilter             []string `json:"group_filter"`
	GenerationRequired      bool     `json:"generation_required"`
	SpanReplacementRequired bool     `json:"span_replacement_required"`
}

// Planner turns a question into a validated RetrievalPlan with a
// single structured model call.
//
// Safe for concurrent use.
type Planner struct {
	client llm.Client
	logger *slog.Logger
	now    func() time.Time
}

// New wires a Planner over the given model client.
func New(client llm.Client, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{client: client, logger: logger, now: time.Now}
}

// Plan classifies the question. The model's raw plan is validated and
// repaired here, never trusted as-is: unknown strategies fail, missing
// or inverted date windows fall back to the default window, and bounds
// are clamped to [platform epoch, today].
func (p *Planner) Plan(ctx context.Context, question, selectedText string) (*datatypes.RetrievalPlan, error) {
	user := question
	if strings.TrimSpace(selectedText) != "" {
		user = fmt.Sprintf("Question: %s\n\nSelected text:\n%s", question, selectedText)
	}
	temp := float32(0)
	req := llm.UserMessage(plannerSystemPrompt, user)
	req.Temperature = &temp

	raw, err := llm.CompleteInto[planResponse](ctx, p.client, req)
	if err != nil {
		return nil, fmt.Errorf("planning question: %w", err)
	}

	strategy := datatypes.Strategy(strings.TrimSpace(raw.Strategy))
	if !strategy.Valid() {
		return nil, fmt.Errorf("planner returned unknown strategy %q (valid: %v)",
			raw.Strategy, datatypes.AllStrategies())
	}

	plan := &datatypes.RetrievalPlan{
		Strategy:                strategy,
		GenerationRequired:      raw.GenerationRequired,
		SpanReplacementRequired: raw.SpanReplacementRequired,
	}

	if strategy.RequiresRetrieval() {
		rewritten := strings.TrimSpace(raw.RewrittenQuestion)
		if rewritten == "" {
			rewritten = question
		}
		plan.RewrittenQuestion = &rewritten
		plan.DataTypes = raw.DataTypes
		plan.GroupFilter = raw.GroupFilter
		window := p.resolveWindow(raw.DateStart, raw.DateEnd)
		plan.DateRange = &window
	}
	if strategy == datatypes.StrategyNoGenerate {
		plan.GenerationRequired = false
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("planner produced invalid plan: %w", err)
	}

	p.logger.Debug("retrieval plan produced",
		"strategy", plan.Strategy.String(),
		"data_types", plan.DataTypes,
		"generation_required", plan.GenerationRequired)
	return plan, nil
}

// resolveWindow turns the model's date strings into a usable window.
// Any unparseable or inverted pair falls back to the default window
// rather than failing the request.
func (p *Planner) resolveWindow(startStr, endStr string) datatypes.DateRange {
	today := truncateDay(p.now().UTC())
	fallback := datatypes.DateRange{Start: today.AddDate(-defaultWindowYears, 0, 0), End: today}

	start, okStart := parseDay(startStr)
	end, okEnd := parseDay(endStr)
	if !okStart || !okEnd {
		return fallback
	}
	if end.After(today) {
		end = today
	}
	if start.Before(platformEpoch) {
		start = platformEpoch
	}
	if end.Before(start) {
		p.logger.Warn("planner date window inverted, using default",
			"start", startStr, "end", endStr)
		return fallback
	}
	return datatypes.DateRange{Start: start, End: end}
}

func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
