// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
	"github.com/inkwell-ai/inkwell/services/engine/observability"
)

// ErrConsistency indicates the merge left a position unfilled or the
// result count diverged from the unit count. This is a batching bug,
// not a user error: the request fails before any cache write so the
// persisted entry stays intact.
var ErrConsistency = errors.New("analysis results do not cover all text units")

// Analyzer runs incremental document analysis: unchanged sentences are
// served from the cache, changed ones go to the classifier in a single
// batch.
//
// Classifier calls are the expensive part and documents are edited
// incrementally, so re-analysis cost tracks the number of changed
// units, not document size.
//
// Safe for concurrent use across documents. Concurrent Analyze calls
// for the same document resolve last-write-wins at the cache.
type Analyzer struct {
	store      Store
	classifier Classifier
	logger     *slog.Logger
}

// NewAnalyzer wires an Analyzer. Dependencies are injected so tests
// can substitute fakes and model versions can coexist.
func NewAnalyzer(store Store, classifier Classifier, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{store: store, classifier: classifier, logger: logger}
}

// Analyze splits fullText into units, reuses cached verdicts for
// unchanged units, classifies the rest in one batch, and persists the
// merged result set as the document's new cache entry.
//
// The returned slice always has exactly one result per text unit,
// indexed 0..N-1.
func (a *Analyzer) Analyze(ctx context.Context, docID, fullText string) ([]datatypes.AnalysisResult, error) {
	units := SplitUnits(fullText)
	if len(units) == 0 {
		empty := &datatypes.CacheEntry{DocID: docID, Units: []datatypes.AnalysisResult{}}
		if err := a.store.Upsert(ctx, docID, empty); err != nil {
			return nil, err
		}
		return empty.Units, nil
	}

	prevByHash := a.loadPrevious(ctx, docID)

	results := make([]*datatypes.AnalysisResult, len(units))
	var pending []datatypes.TextUnit
	for i, unit := range units {
		if prev, ok := prevByHash[unit.Hash]; ok {
			reused := prev
			reused.Index = unit.Index
			reused.Text = unit.Content
			results[i] = &reused
			continue
		}
		pending = append(pending, unit)
	}

	a.logger.Info("document analysis",
		"doc_id", docID,
		"units", len(units),
		"cached", len(units)-len(pending),
		"to_classify", len(pending),
	)
	observability.ObserveCacheUnits(len(units)-len(pending), len(pending))

	if len(pending) > 0 {
		if err := a.classifyPending(ctx, pending, results); err != nil {
			return nil, err
		}
	}

	merged := make([]datatypes.AnalysisResult, len(units))
	for i, r := range results {
		if r == nil {
			// Fail before the upsert; the persisted entry must not be
			// corrupted by a batching bug.
			return nil, fmt.Errorf("%w: position %d unfilled", ErrConsistency, i)
		}
		merged[i] = *r
	}

	entry := &datatypes.CacheEntry{DocID: docID, Units: merged}
	if err := a.store.Upsert(ctx, docID, entry); err != nil {
		return nil, fmt.Errorf("persist analysis for %s: %w", docID, err)
	}
	return merged, nil
}

// loadPrevious maps content hash to the previous verdict for docID.
// A cache miss or read failure degrades to full reclassification.
func (a *Analyzer) loadPrevious(ctx context.Context, docID string) map[string]datatypes.AnalysisResult {
	prev, err := a.store.Get(ctx, docID)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	if err != nil {
		a.logger.Warn("analysis cache read failed, reclassifying all units",
			"doc_id", docID, "error", err)
		return nil
	}

	byHash := make(map[string]datatypes.AnalysisResult, len(prev.Units))
	for _, u := range prev.Units {
		byHash[HashContent(u.Text)] = u
	}
	return byHash
}

// classifyPending sends every pending unit to the classifier in one
// batch and splices verdicts back into their original positions.
func (a *Analyzer) classifyPending(ctx context.Context, pending []datatypes.TextUnit, results []*datatypes.AnalysisResult) error {
	sentences := make([]string, len(pending))
	for i, unit := range pending {
		sentences[i] = unit.Content
	}

	observability.ObserveClassifierBatch(len(sentences))
	verdicts, err := a.classifier.Classify(ctx, sentences)
	if errors.Is(err, ErrModelUnavailable) {
		a.logger.Error("classifier unavailable, emitting degraded results",
			"units", len(pending), "error", err)
		for _, unit := range pending {
			results[unit.Index] = &datatypes.AnalysisResult{
				Index:       unit.Index,
				Text:        unit.Content,
				Flag:        false,
				Label:       LabelUnavailable,
				Highlighted: []string{},
				Explanation: []string{"analysis model unavailable; sentence not reviewed"},
			}
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("classify batch: %w", err)
	}
	if len(verdicts) != len(pending) {
		return fmt.Errorf("%w: classifier returned %d verdicts for %d units",
			ErrConsistency, len(verdicts), len(pending))
	}

	for k, unit := range pending {
		v := verdicts[k]
		results[unit.Index] = &datatypes.AnalysisResult{
			Index:       unit.Index,
			Text:        unit.Content,
			Flag:        v.Flag,
			Label:       v.Label,
			Highlighted: v.Highlighted,
			Explanation: v.Explanation,
		}
	}
	return nil
}
