// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// AnswerStatus classifies the user-facing outcome of a pipeline run.
// Callers can always distinguish "nothing found" from "blocked" from
// "internal error" without inspecting message text.
type AnswerStatus string

const (
	// StatusOK means the pipeline completed and produced a generation.
	StatusOK AnswerStatus = "ok"

	// StatusEvidenceOnly means the plan did not require generation and
	// the answer carries formatted citations instead.
	StatusEvidenceOnly AnswerStatus = "evidence_only"

	// StatusBlocked means the guard refused the request.
	StatusBlocked AnswerStatus = "blocked"

	// StatusInsufficient means retrieval found nothing and the
	// generator declined to fabricate grounding.
	StatusInsufficient AnswerStatus = "insufficient_evidence"
)

// PipelineState is the mutable record threaded through the pipeline
// stages. Created per request, discarded after the response,
// never shared across requests. Each stage reads and writes only the
// fields it owns.
type PipelineState struct {
	// RequestID identifies the run in logs and traces.
	RequestID string

	// Question is the working question text; the planner may replace
	// it with a rewritten form for retrieval.
	Question string

	// OriginalQuestion is the user's question exactly as received.
	OriginalQuestion string

	// SelectedText is the user-highlighted fragment, if any.
	SelectedText string

	// DocID scopes the request to a document.
	DocID string

	// Plan is set by the planner stage.
	Plan *RetrievalPlan

	// Evidence is set by the retrieval stage and filtered in place by
	// the reranker. Balanced retrieval keeps EvidenceGroups alongside.
	Evidence       []EvidenceDocument
	EvidenceGroups []EvidenceGroup

	// ContextSummary is the condensed prior-conversation summary the
	// generator grounds on, never the raw turn history.
	ContextSummary string

	// Generation outputs.
	Generation string
	Suggestion string
	ApplyTitle string
	ApplyBody  string

	// Retries is reserved for a bounded re-plan-on-empty-evidence loop.
	// No stage increments or reads it today.
	Retries int
}

// AnswerResult is the structured payload returned to the caller.
type AnswerResult struct {
	Status     AnswerStatus       `json:"status"`
	Generation string             `json:"generation"`
	Suggestion string             `json:"suggestion,omitempty"`
	ApplyTitle string             `json:"apply_title,omitempty"`
	ApplyBody  string             `json:"apply_body,omitempty"`
	Sources    []EvidenceDocument `json:"sources,omitempty"`
}
