// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
	"github.com/inkwell-ai/inkwell/services/engine/history"
	"github.com/inkwell-ai/inkwell/services/llm"
)

// scriptedClient replays one canned response and records requests.
type scriptedClient struct {
	response string
	requests []llm.Request
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.requests = append(c.requests, req)
	return c.response, nil
}

// memoryHistory is an in-memory history.Store.
type memoryHistory struct {
	turns []history.Turn
}

func (m *memoryHistory) Recent(_ context.Context, _ string, limit int) ([]history.Turn, error) {
	if len(m.turns) > limit {
		return m.turns[len(m.turns)-limit:], nil
	}
	return m.turns, nil
}

func (m *memoryHistory) Save(_ context.Context, _, q, a string) error {
	m.turns = append(m.turns, history.Turn{Question: q, Answer: a})
	return nil
}

func someEvidence() []datatypes.EvidenceDocument {
	return []datatypes.EvidenceDocument{
		{Content: "The council approved the budget.", Metadata: map[string]any{"source": "Daily Times"}},
		{Content: "Opposition members walked out.", Metadata: map[string]any{"source": "The Herald"}},
	}
}

func TestAnswer_GroundedGeneration(t *testing.T) {
	client := &scriptedClient{response: `{"generation": "The budget passed.", "suggestion": "Ask about the opposition response."}`}
	g := New(client, nil, nil)

	res, err := g.Answer(context.Background(), Request{
		Question:        "Did the budget pass?",
		Evidence:        someEvidence(),
		RequireEvidence: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "The budget passed.", res.Generation)
	assert.Equal(t, "Ask about the opposition response.", res.Suggestion)
	assert.False(t, res.Insufficient)

	require.Len(t, client.requests, 1)
	prompt := client.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "[1] (Daily Times)")
	assert.Contains(t, prompt, "[2] (The Herald)")
	assert.Contains(t, prompt, "Did the budget pass?")
}

func TestAnswer_EmptyEvidenceShortCircuits(t *testing.T) {
	client := &scriptedClient{}
	g := New(client, nil, nil)

	res, err := g.Answer(context.Background(), Request{
		Question:        "Did the budget pass?",
		RequireEvidence: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Equal(t, InsufficientEvidenceMessage, res.Generation)
	assert.Empty(t, client.requests, "no model call may be spent on fabricating grounding")
}

func TestAnswer_NoRetrievalPathStillGenerates(t *testing.T) {
	client := &scriptedClient{response: `{"generation": "Hello! How can I help with the document?", "suggestion": ""}`}
	g := New(client, nil, nil)

	res, err := g.Answer(context.Background(), Request{Question: "hi there"})
	require.NoError(t, err)
	assert.False(t, res.Insufficient)
	assert.NotEmpty(t, res.Generation)
}

func TestAnswer_SpanReplacementConstraintInPrompt(t *testing.T) {
	client := &scriptedClient{response: `{"generation": "Done.", "suggestion": "", "apply_body": "passed narrowly"}`}
	g := New(client, nil, nil)

	res, err := g.Answer(context.Background(), Request{
		Question:        "make this more precise",
		SelectedText:    "passed",
		Evidence:        someEvidence(),
		SpanReplacement: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "passed narrowly", res.ApplyBody)

	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].System, "drop-in replacement")
	assert.Contains(t, client.requests[0].Messages[0].Content, "Selected text:\npassed")
}

func TestTitles_FirstCandidateIsApplyTitle(t *testing.T) {
	client := &scriptedClient{response: `{"titles": ["Council Passes Budget 7-2", "Budget Vote Splits Council"]}`}
	g := New(client, nil, nil)

	res, err := g.Titles(context.Background(), "The council passed the budget after a long session.")
	require.NoError(t, err)
	assert.Equal(t, "Council Passes Budget 7-2", res.ApplyTitle)
	assert.Len(t, res.Titles, 2)
	assert.Contains(t, res.Generation, "1. Council Passes Budget 7-2")
}

func TestTitles_RequiresSelectedText(t *testing.T) {
	g := New(&scriptedClient{}, nil, nil)
	_, err := g.Titles(context.Background(), "   ")
	require.Error(t, err)
}

func TestContextSummary_SummarizesRecentTurns(t *testing.T) {
	client := &scriptedClient{response: `{"summary": "The user has been asking about the budget vote."}`}
	store := &memoryHistory{turns: []history.Turn{
		{Question: "what happened at the council?", Answer: "They voted on the budget."},
	}}
	g := New(client, store, nil)

	summary, err := g.ContextSummary(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "The user has been asking about the budget vote.", summary)
	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].Messages[0].Content, "what happened at the council?")
}

func TestContextSummary_NoHistoryMeansNoModelCall(t *testing.T) {
	client := &scriptedClient{}
	g := New(client, &memoryHistory{}, nil)

	summary, err := g.ContextSummary(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Empty(t, client.requests)
}
