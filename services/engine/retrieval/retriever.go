// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
)

// Config tunes retrieval depth.
type Config struct {
	// TopK is the standard-mode result limit.
	TopK int

	// PerGroup is the balanced-mode limit for each perspective group.
	PerGroup int

	// DefaultGroups are the perspective groups queried when the plan
	// carries no group filter.
	DefaultGroups []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:          10,
		PerGroup:      5,
		DefaultGroups: []string{"progressive", "conservative"},
	}
}

// Retriever executes a retrieval plan against a Searcher.
//
// Thread Safety: safe for concurrent use.
type Retriever struct {
	searcher Searcher
	config   Config
	logger   *slog.Logger
}

// New wires a Retriever with default configuration.
func New(searcher Searcher, logger *slog.Logger) *Retriever {
	return NewWithConfig(searcher, DefaultConfig(), logger)
}

// NewWithConfig wires a Retriever with explicit limits.
func NewWithConfig(searcher Searcher, config Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}
	if config.PerGroup <= 0 {
		config.PerGroup = DefaultConfig().PerGroup
	}
	if len(config.DefaultGroups) == 0 {
		config.DefaultGroups = DefaultConfig().DefaultGroups
	}
	return &Retriever{searcher: searcher, config: config, logger: logger}
}

// Standard runs one ranked similarity query under the plan's filters.
func (r *Retriever) Standard(ctx context.Context, plan *datatypes.RetrievalPlan) ([]datatypes.EvidenceDocument, error) {
	query, err := planQuery(plan)
	if err != nil {
		return nil, err
	}
	docs, err := r.searcher.Search(ctx, query, Filters{
		DataTypes: plan.DataTypes,
		DateRange: plan.DateRange,
	}, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("standard retrieval: %w", err)
	}
	r.logger.Debug("standard retrieval complete", "count", len(docs))
	return docs, nil
}

// Balanced queries each perspective group in parallel and keeps the
// results grouped. A group whose query fails is logged and skipped so
// one side's outage does not blank the other; only total failure is an
// error.
func (r *Retriever) Balanced(ctx context.Context, plan *datatypes.RetrievalPlan) ([]datatypes.EvidenceGroup, error) {
	query, err := planQuery(plan)
	if err != nil {
		return nil, err
	}
	groups := plan.GroupFilter
	if len(groups) == 0 {
		groups = r.config.DefaultGroups
	}

	results := make([]datatypes.EvidenceGroup, len(groups))
	var mu sync.Mutex
	var failures []error

	eg, egCtx := errgroup.WithContext(ctx)
	for i, group := range groups {
		eg.Go(func() error {
			docs, err := r.searcher.Search(egCtx, query, Filters{
				DataTypes: plan.DataTypes,
				DateRange: plan.DateRange,
				Group:     group,
			}, r.config.PerGroup)
			if err != nil {
				r.logger.Warn("balanced retrieval group failed, skipping",
					"group", group, "error", err)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return nil
			}
			results[i] = datatypes.EvidenceGroup{Group: group, Documents: docs}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if len(failures) == len(groups) {
		return nil, fmt.Errorf("balanced retrieval: all %d groups failed: %w",
			len(groups), failures[0])
	}

	kept := results[:0]
	for _, g := range results {
		if g.Group != "" {
			kept = append(kept, g)
		}
	}
	r.logger.Debug("balanced retrieval complete", "groups", len(kept))
	return kept, nil
}

func planQuery(plan *datatypes.RetrievalPlan) (string, error) {
	if plan == nil || plan.RewrittenQuestion == nil || *plan.RewrittenQuestion == "" {
		return "", fmt.Errorf("plan carries no query")
	}
	return *plan.RewrittenQuestion, nil
}
