// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package generate composes the final grounded response: answer,
// follow-up suggestion, optional span replacement, and title
// candidates.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
	"github.com/inkwell-ai/inkwell/services/engine/history"
	"github.com/inkwell-ai/inkwell/services/llm"
)

// InsufficientEvidenceMessage is returned verbatim when retrieval was
// planned but found nothing. The generator never fabricates grounding.
const InsufficientEvidenceMessage = "I could not find enough supporting material to answer this question reliably. Try rephrasing it or widening the time range."

// historySummaryLimit is how many prior turns feed the context summary.
const historySummaryLimit = 5

const answerSystemPrompt = `You are a writing assistant for journalists working on a document.
Answer the question using ONLY the provided evidence excerpts and conversation
summary. Never invent facts; if a statement is an inference rather than
something the evidence states directly, mark it with "(inference)".
Keep the answer concise and cite excerpts by their [n] label where relevant.
Also produce one short follow-up suggestion the user might ask next.
Respond with a JSON object:
{"generation": "...", "suggestion": "..."}`

const spanReplacementInstructions = `
The user has selected a text fragment to be rewritten. Additionally produce
"apply_body": a drop-in replacement for EXACTLY the selected fragment. It must
replace only that fragment, not grow into a full sentence or paragraph, and it
must keep grammatical agreement with the text around it.
Respond with a JSON object:
{"generation": "...", "suggestion": "...", "apply_body": "..."}`

const summarySystemPrompt = `Summarize the following conversation turns in two or three sentences,
keeping only what is relevant for answering future questions about the
document. Respond with a JSON object: {"summary": "..."}`

const titleSystemPrompt = `Suggest newspaper-style titles for the following text, best first.
Titles must be factual, specific, and under 80 characters.
Respond with a JSON object: {"titles": ["...", "..."]}`

type answerResponse struct {
	Generation string `json:"generation"`
	Suggestion string `json:"suggestion"`
	ApplyBody  string `json:"apply_body"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

type titleResponse struct {
	Titles []string `json:"titles"`
}

// Request carries everything one grounding call needs.
type Request struct {
	Question       string
	SelectedText   string
	ContextSummary string
	Evidence       []datatypes.EvidenceDocument

	// SpanReplacement asks for apply_body replacing the selected text.
	SpanReplacement bool

	// RequireEvidence marks that retrieval was planned; with empty
	// evidence the generator answers "insufficient" without a model
	// call instead of fabricating grounding.
	RequireEvidence bool
}

// Result is the generator's contribution to the answer payload.
type Result struct {
	Generation string
	Suggestion string
	ApplyBody  string
	ApplyTitle string
	Titles     []string

	// Insufficient is set when the evidence-required path found none.
	Insufficient bool
}

// Generator runs the grounding calls.
//
// Thread Safety: safe for concurrent use.
type Generator struct {
	client  llm.Client
	history history.Store
	logger  *slog.Logger
}

// New wires a Generator. history may be nil when no conversation
// persistence is available; summaries are then empty.
func New(client llm.Client, historyStore history.Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, history: historyStore, logger: logger}
}

// ContextSummary condenses the document's recent turns into a short
// summary. No turns means no summary and no model call.
func (g *Generator) ContextSummary(ctx context.Context, docID string) (string, error) {
	if g.history == nil || docID == "" {
		return "", nil
	}
	turns, err := g.history.Recent(ctx, docID, historySummaryLimit)
	if err != nil {
		return "", fmt.Errorf("loading conversation history: %w", err)
	}
	if len(turns) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", t.Question, t.Answer)
	}
	resp, err := llm.CompleteInto[summaryResponse](ctx, g.client,
		llm.UserMessage(summarySystemPrompt, b.String()))
	if err != nil {
		return "", fmt.Errorf("summarizing conversation: %w", err)
	}
	return resp.Summary, nil
}

// Answer produces the grounded generation for the question.
func (g *Generator) Answer(ctx context.Context, req Request) (*Result, error) {
	if req.RequireEvidence && len(req.Evidence) == 0 {
		g.logger.Info("no evidence retrieved, returning insufficient-information answer")
		return &Result{Generation: InsufficientEvidenceMessage, Insufficient: true}, nil
	}

	system := answerSystemPrompt
	if req.SpanReplacement && req.SelectedText != "" {
		system += spanReplacementInstructions
	}

	var b strings.Builder
	if req.ContextSummary != "" {
		fmt.Fprintf(&b, "Conversation summary:\n%s\n\n", req.ContextSummary)
	}
	if req.SelectedText != "" {
		fmt.Fprintf(&b, "Selected text:\n%s\n\n", req.SelectedText)
	}
	if len(req.Evidence) > 0 {
		b.WriteString("Evidence excerpts:\n")
		b.WriteString(FormatEvidence(req.Evidence))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s", req.Question)

	resp, err := llm.CompleteInto[answerResponse](ctx, g.client,
		llm.UserMessage(system, b.String()))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	return &Result{
		Generation: resp.Generation,
		Suggestion: resp.Suggestion,
		ApplyBody:  resp.ApplyBody,
	}, nil
}

// Titles produces ranked title candidates for the selected text; the
// first candidate doubles as the apply_title.
func (g *Generator) Titles(ctx context.Context, selectedText string) (*Result, error) {
	if strings.TrimSpace(selectedText) == "" {
		return nil, fmt.Errorf("title generation requires selected text")
	}
	resp, err := llm.CompleteInto[titleResponse](ctx, g.client,
		llm.UserMessage(titleSystemPrompt, selectedText))
	if err != nil {
		return nil, fmt.Errorf("generating titles: %w", err)
	}
	if len(resp.Titles) == 0 {
		return nil, fmt.Errorf("model returned no title candidates")
	}

	var b strings.Builder
	b.WriteString("Title suggestions:\n")
	for i, title := range resp.Titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	return &Result{
		Generation: b.String(),
		ApplyTitle: resp.Titles[0],
		Titles:     resp.Titles,
	}, nil
}

// FormatEvidence renders evidence as labeled excerpts, the form both
// the grounding prompt and the evidence-only response use.
func FormatEvidence(evidence []datatypes.EvidenceDocument) string {
	var b strings.Builder
	for i, doc := range evidence {
		label := doc.Source()
		if label != "" {
			fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, label, doc.Content)
		} else {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, doc.Content)
		}
	}
	return b.String()
}
