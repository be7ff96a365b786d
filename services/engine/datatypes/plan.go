// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared types threaded through the
// document-intelligence pipeline: retrieval plans, evidence, pipeline
// state, and per-sentence analysis results.
package datatypes

import (
	"fmt"
	"strconv"
	"time"
)

// Strategy is the closed set of retrieval strategies a plan can select.
//
// The pipeline dispatches on this type through an exhaustive table;
// adding a strategy is a compile-visible change, not a string compare
// scattered across call sites.
type Strategy string

const (
	// StrategyStandard runs a single ranked similarity query under
	// metadata filters. Fact and lookup questions.
	StrategyStandard Strategy = "standard"

	// StrategyBalanced runs parallel per-group queries so opposing
	// perspectives are each represented. Comparative questions.
	StrategyBalanced Strategy = "balanced"

	// StrategyTitleGeneration skips retrieval and produces ranked
	// title candidates for the selected text.
	StrategyTitleGeneration Strategy = "title_generation"

	// StrategyNoRetrieval answers self-contained or small-talk
	// questions directly from conversation context.
	StrategyNoRetrieval Strategy = "no_retrieval"

	// StrategyNoGenerate terminates the pipeline with a fixed refusal.
	// Hostile or offensive requests.
	StrategyNoGenerate Strategy = "no_generate"
)

// String returns the strategy as a string.
func (s Strategy) String() string {
	return string(s)
}

// Valid reports whether s is a member of the closed strategy set.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyStandard, StrategyBalanced, StrategyTitleGeneration,
		StrategyNoRetrieval, StrategyNoGenerate:
		return true
	default:
		return false
	}
}

// RequiresRetrieval reports whether the strategy fetches evidence.
func (s Strategy) RequiresRetrieval() bool {
	return s == StrategyStandard || s == StrategyBalanced
}

// AllStrategies returns every valid strategy, for validation messages.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategyStandard,
		StrategyBalanced,
		StrategyTitleGeneration,
		StrategyNoRetrieval,
		StrategyNoGenerate,
	}
}

// DateRange bounds a retrieval query in time. Both ends are inclusive
// and truncated to whole days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StartInt returns the start date encoded as YYYYMMDD, the integer
// form stored in vector index metadata for range filtering.
func (r DateRange) StartInt() int64 {
	return dateInt(r.Start)
}

// EndInt returns the end date encoded as YYYYMMDD.
func (r DateRange) EndInt() int64 {
	return dateInt(r.End)
}

func dateInt(t time.Time) int64 {
	v, _ := strconv.ParseInt(t.Format("20060102"), 10, 64)
	return v
}

// RetrievalPlan is the structured output of intent classification.
// It is immutable once produced; the retriever and generator only read
// from it.
type RetrievalPlan struct {
	// Strategy selects the pipeline path.
	Strategy Strategy `json:"strategy"`

	// DataTypes are the evidence categories needed (e.g. "editorial",
	// "commentary", "article"). Empty when no retrieval is planned.
	DataTypes []string `json:"data_types"`

	// RewrittenQuestion is the search-optimized query: greetings and
	// time phrases stripped, retrieval-salient keywords kept. Nil when
	// the strategy does not retrieve.
	RewrittenQuestion *string `json:"rewritten_question,omitempty"`

	// DateRange bounds the query in time. Nil for no_generate.
	DateRange *DateRange `json:"date_range,omitempty"`

	// GroupFilter overrides the default perspective groups for
	// balanced retrieval. Nil means the configured default set.
	GroupFilter []string `json:"group_filter,omitempty"`

	// GenerationRequired is false for pure "show me evidence" intents;
	// the pipeline then returns formatted citations after reranking.
	GenerationRequired bool `json:"generation_required"`

	// SpanReplacementRequired asks the generator for a drop-in
	// replacement of the user-selected fragment.
	SpanReplacementRequired bool `json:"span_replacement_required"`
}

// Validate checks the plan's internal invariants.
//
// no_generate implies no rewritten question and no date range: the
// guard already decided no work will be spent on this request.
func (p *RetrievalPlan) Validate() error {
	if !p.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q (valid: %v)", p.Strategy, AllStrategies())
	}
	if p.Strategy == StrategyNoGenerate {
		if p.RewrittenQuestion != nil {
			return fmt.Errorf("no_generate plan must not carry a rewritten question")
		}
		if p.DateRange != nil {
			return fmt.Errorf("no_generate plan must not carry a date range")
		}
	}
	if p.DateRange != nil && p.DateRange.End.Before(p.DateRange.Start) {
		return fmt.Errorf("date range end %s before start %s",
			p.DateRange.End.Format("2006-01-02"), p.DateRange.Start.Format("2006-01-02"))
	}
	return nil
}
