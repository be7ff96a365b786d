// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine orchestrates the question-answering pipeline:
// guard → plan → retrieve → rerank → generate, with terminal
// short-circuits for blocked and no-generation paths.
//
// Transitions are a pure function of the plan's strategy through one
// dispatch table; no stage decides control flow on its own.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
	"github.com/inkwell-ai/inkwell/services/engine/generate"
	"github.com/inkwell-ai/inkwell/services/engine/guard"
	"github.com/inkwell-ai/inkwell/services/engine/observability"
)

// Collaborator contracts. The pipeline accepts interfaces so tests can
// assert gating behavior (a blocked question must never reach the
// retriever or generator).

// Guard pre-screens the question.
type Guard interface {
	Check(ctx context.Context, question string) (guard.Verdict, error)
}

// Planner classifies the question into a retrieval plan.
type Planner interface {
	Plan(ctx context.Context, question, selectedText string) (*datatypes.RetrievalPlan, error)
}

// Retriever fetches evidence per the plan.
type Retriever interface {
	Standard(ctx context.Context, plan *datatypes.RetrievalPlan) ([]datatypes.EvidenceDocument, error)
	Balanced(ctx context.Context, plan *datatypes.RetrievalPlan) ([]datatypes.EvidenceGroup, error)
}

// Reranker filters evidence to the top-k most relevant chunks.
type Reranker interface {
	Rerank(ctx context.Context, question string, evidence []datatypes.EvidenceDocument, topK int) ([]datatypes.EvidenceDocument, error)
}

// Generator produces the grounded response.
type Generator interface {
	ContextSummary(ctx context.Context, docID string) (string, error)
	Answer(ctx context.Context, req generate.Request) (*generate.Result, error)
	Titles(ctx context.Context, selectedText string) (*generate.Result, error)
}

// Pipeline wires the stages together. One instance serves all
// requests; per-request state lives in PipelineState.
//
// Thread Safety: safe for concurrent use.
type Pipeline struct {
	guard     Guard
	planner   Planner
	retriever Retriever
	reranker  Reranker
	generator Generator
	logger    *slog.Logger
	tracer    trace.Tracer

	dispatch map[datatypes.Strategy]stageFunc
}

type stageFunc func(ctx context.Context, state *datatypes.PipelineState) (*datatypes.AnswerResult, error)

// NewPipeline wires the stage collaborators. All of them are required.
func NewPipeline(g Guard, p Planner, r Retriever, rr Reranker, gen Generator, logger *slog.Logger) (*Pipeline, error) {
	if g == nil || p == nil || r == nil || rr == nil || gen == nil {
		return nil, fmt.Errorf("all pipeline collaborators must be non-nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	pl := &Pipeline{
		guard:     g,
		planner:   p,
		retriever: r,
		reranker:  rr,
		generator: gen,
		logger:    logger,
		tracer:    otel.Tracer("inkwell/engine"),
	}
	pl.dispatch = map[datatypes.Strategy]stageFunc{
		datatypes.StrategyStandard:        pl.runStandard,
		datatypes.StrategyBalanced:        pl.runBalanced,
		datatypes.StrategyTitleGeneration: pl.runTitleGeneration,
		datatypes.StrategyNoRetrieval:     pl.runNoRetrieval,
		datatypes.StrategyNoGenerate:      pl.runNoGenerate,
	}
	return pl, nil
}

// AnswerQuestion runs one question through the full pipeline.
func (p *Pipeline) AnswerQuestion(ctx context.Context, docID, question, selectedText string) (*datatypes.AnswerResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.answer_question")
	defer span.End()

	state := &datatypes.PipelineState{
		RequestID:        uuid.NewString(),
		Question:         question,
		OriginalQuestion: question,
		SelectedText:     selectedText,
		DocID:            docID,
	}
	span.SetAttributes(attribute.String("request_id", state.RequestID))
	logger := p.logger.With("request_id", state.RequestID, "doc_id", docID)

	verdict, err := p.timedGuard(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("guard stage: %w", err)
	}
	if verdict.Blocked {
		logger.Warn("request blocked by guard", "reason", verdict.Reason)
		observability.ObserveRequest("", string(datatypes.StatusBlocked))
		return &datatypes.AnswerResult{
			Status:     datatypes.StatusBlocked,
			Generation: guard.RefusalMessage,
		}, nil
	}

	plan, err := p.timedPlan(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("plan stage: %w", err)
	}
	state.Plan = plan
	if plan.RewrittenQuestion != nil {
		state.Question = *plan.RewrittenQuestion
	}
	logger.Info("plan selected", "strategy", plan.Strategy.String())
	span.SetAttributes(attribute.String("strategy", plan.Strategy.String()))

	run, ok := p.dispatch[plan.Strategy]
	if !ok {
		// Valid() was checked by the planner; reaching here is a bug.
		return nil, fmt.Errorf("no dispatch entry for strategy %q", plan.Strategy)
	}

	result, err := run(ctx, state)
	if err != nil {
		observability.ObserveRequest(plan.Strategy.String(), "error")
		return nil, err
	}
	observability.ObserveRequest(plan.Strategy.String(), string(result.Status))
	return result, nil
}

func (p *Pipeline) timedGuard(ctx context.Context, state *datatypes.PipelineState) (guard.Verdict, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.guard")
	defer span.End()
	start := time.Now()
	defer func() { observability.ObserveStage("guard", time.Since(start)) }()
	return p.guard.Check(ctx, state.OriginalQuestion)
}

func (p *Pipeline) timedPlan(ctx context.Context, state *datatypes.PipelineState) (*datatypes.RetrievalPlan, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.plan")
	defer span.End()
	start := time.Now()
	defer func() { observability.ObserveStage("plan", time.Since(start)) }()
	return p.planner.Plan(ctx, state.OriginalQuestion, state.SelectedText)
}

// runStandard is the standard retrieval path.
func (p *Pipeline) runStandard(ctx context.Context, state *datatypes.PipelineState) (*datatypes.AnswerResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.retrieve_standard")
	start := time.Now()
	evidence, err := p.retriever.Standard(ctx, state.Plan)
	observability.ObserveStage("retrieve", time.Since(start))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("standard retrieval: %w", err)
	}
	state.Evidence = evidence
	return p.rerankAndGenerate(ctx, state)
}

// runBalanced retrieves per-group, then flattens for reranking while
// keeping the grouped view on the state.
func (p *Pipeline) runBalanced(ctx context.Context, state *datatypes.PipelineState) (*datatypes.AnswerResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.retrieve_balanced")
	start := time.Now()
	groups, err := p.retriever.Balanced(ctx, state.Plan)
	observability.ObserveStage("retrieve", time.Since(start))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("balanced retrieval: %w", err)
	}
	state.EvidenceGroups = groups
	state.Evidence = datatypes.FlattenGroups(groups)
	return p.rerankAndGenerate(ctx, state)
}

// rerankAndGenerate is the shared tail of both retrieval paths.
func (p *Pipeline) rerankAndGenerate(ctx context.Context, state *datatypes.PipelineState) (*datatypes.AnswerResult, error) {
	rerankCtx, span := p.tracer.Start(ctx, "pipeline.rerank")
	start := time.Now()
	reranked, err := p.reranker.Rerank(rerankCtx, state.Question, state.Evidence, 0)
	observability.ObserveStage("rerank", time.Since(start))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	state.Evidence = reranked

	if !state.Plan.GenerationRequired {
		return &datatypes.AnswerResult{
			Status:     datatypes.StatusEvidenceOnly,
			Generation: generate.FormatEvidence(state.Evidence),
			Sources:    state.Evidence,
		}, nil
	}
	return p.generateAnswer(ctx, state, true)
}

// runNoRetrieval generates directly from conversation context.
func (p *Pipeline) runNoRetrieval(ctx context.Context, state *datatypes.PipelineState) (*datatypes.AnswerResult, error) {
	return p.generateAnswer(ctx, state, false)
}

// runTitleGeneration produces ranked title candidates for the
// selection, falling back to the question text when nothing is
// selected.
func (p *Pipeline) runTitleGeneration(ctx context.Context, state *datatypes.PipelineState) (*datatypes.AnswerResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.generate_titles")
	defer span.End()
	start := time.Now()
	defer func() { observability.ObserveStage("generate", time.Since(start)) }()

	material := state.SelectedText
	if material == "" {
		material = state.OriginalQuestion
	}
	res, err := p.generator.Titles(ctx, material)
	if err != nil {
		return nil, fmt.Errorf("title generation: %w", err)
	}
	return &datatypes.AnswerResult{
		Status:     datatypes.StatusOK,
		Generation: res.Generation,
		ApplyTitle: res.ApplyTitle,
	}, nil
}

// runNoGenerate is the blocked terminal selected by the planner.
func (p *Pipeline) runNoGenerate(_ context.Context, _ *datatypes.PipelineState) (*datatypes.AnswerResult, error) {
	return &datatypes.AnswerResult{
		Status:     datatypes.StatusBlocked,
		Generation: guard.RefusalMessage,
	}, nil
}

// generateAnswer composes the context summary and runs the grounding
// call. requireEvidence distinguishes retrieval paths (which must not
// fabricate on empty evidence) from the no-retrieval shortcut.
func (p *Pipeline) generateAnswer(ctx context.Context, state *datatypes.PipelineState, requireEvidence bool) (*datatypes.AnswerResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.generate")
	defer span.End()
	start := time.Now()
	defer func() { observability.ObserveStage("generate", time.Since(start)) }()

	summary, err := p.generator.ContextSummary(ctx, state.DocID)
	if err != nil {
		p.logger.Warn("context summary unavailable, generating without it",
			"request_id", state.RequestID, "error", err)
		summary = ""
	}
	state.ContextSummary = summary

	res, err := p.generator.Answer(ctx, generate.Request{
		Question:        state.OriginalQuestion,
		SelectedText:    state.SelectedText,
		ContextSummary:  state.ContextSummary,
		Evidence:        state.Evidence,
		SpanReplacement: state.Plan.SpanReplacementRequired,
		RequireEvidence: requireEvidence,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	state.Generation = res.Generation
	state.Suggestion = res.Suggestion
	state.ApplyBody = res.ApplyBody

	status := datatypes.StatusOK
	if res.Insufficient {
		status = datatypes.StatusInsufficient
	}
	return &datatypes.AnswerResult{
		Status:     status,
		Generation: res.Generation,
		Suggestion: res.Suggestion,
		ApplyBody:  res.ApplyBody,
		Sources:    state.Evidence,
	}, nil
}
