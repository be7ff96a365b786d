// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
)

// Config tunes sub-chunking and scoring parallelism.
type Config struct {
	// TopK is the default number of chunks kept.
	TopK int

	// ChunkSize caps scorer input length in characters.
	ChunkSize int

	// ChunkOverlap is carried between adjacent sub-chunks.
	ChunkOverlap int

	// ScoreBatchSize is how many chunks go into one scorer call.
	ScoreBatchSize int

	// MaxConcurrent bounds parallel scorer calls. Scoring is the
	// compute-bound stage; concurrent requests share this budget.
	MaxConcurrent int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:           5,
		ChunkSize:      512,
		ChunkOverlap:   51,
		ScoreBatchSize: 16,
		MaxConcurrent:  4,
	}
}

// Reranker filters evidence down to the chunks most relevant to the
// question.
//
// Thread Safety: safe for concurrent use.
type Reranker struct {
	scorer Scorer
	config Config
	logger *slog.Logger
}

// New wires a Reranker with default configuration.
func New(scorer Scorer, logger *slog.Logger) *Reranker {
	return NewWithConfig(scorer, DefaultConfig(), logger)
}

// NewWithConfig wires a Reranker with explicit limits.
func NewWithConfig(scorer Scorer, config Config, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if config.TopK <= 0 {
		config.TopK = d.TopK
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = d.ChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = d.ChunkOverlap
	}
	if config.ScoreBatchSize <= 0 {
		config.ScoreBatchSize = d.ScoreBatchSize
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = d.MaxConcurrent
	}
	return &Reranker{scorer: scorer, config: config, logger: logger}
}

// scoredChunk pairs a sub-chunk with its parent metadata and score.
type scoredChunk struct {
	content  string
	metadata map[string]any
	score    float64
}

// Rerank sub-chunks the evidence, scores every (question, chunk) pair,
// normalizes scores with a stable softmax, and keeps the top k.
//
// A scorer outage degrades instead of failing: the evidence is kept in
// retrieval order, truncated to k, and the outage is logged. topK <= 0
// uses the configured default.
func (r *Reranker) Rerank(ctx context.Context, question string, evidence []datatypes.EvidenceDocument, topK int) ([]datatypes.EvidenceDocument, error) {
	if topK <= 0 {
		topK = r.config.TopK
	}
	if len(evidence) == 0 {
		return nil, nil
	}

	chunks, err := r.subChunk(evidence)
	if err != nil {
		return nil, fmt.Errorf("sub-chunking evidence: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	scores, err := r.scoreAll(ctx, question, chunks)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("relevance scorer unavailable, keeping retrieval order", "error", err)
		if len(evidence) > topK {
			evidence = evidence[:topK]
		}
		return evidence, nil
	}

	normalized := stableSoftmax(scores)
	for i := range chunks {
		chunks[i].score = normalized[i]
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].score > chunks[j].score
	})
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	// Renormalize the kept set so returned scores sum to 1.
	var total float64
	for _, c := range chunks {
		total += c.score
	}

	out := make([]datatypes.EvidenceDocument, len(chunks))
	for i, c := range chunks {
		score := c.score
		if total > 0 {
			score /= total
		}
		out[i] = datatypes.EvidenceDocument{
			Content:  c.content,
			Metadata: c.metadata,
			Score:    score,
		}
	}
	return out, nil
}

// subChunk splits each document into bounded pieces, carrying the
// parent metadata onto every piece.
func (r *Reranker) subChunk(evidence []datatypes.EvidenceDocument) ([]scoredChunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(r.config.ChunkSize),
		textsplitter.WithChunkOverlap(r.config.ChunkOverlap),
	)

	var chunks []scoredChunk
	for _, doc := range evidence {
		pieces, err := splitter.SplitText(doc.Content)
		if err != nil {
			return nil, err
		}
		for _, piece := range pieces {
			chunks = append(chunks, scoredChunk{content: piece, metadata: doc.Metadata})
		}
	}
	return chunks, nil
}

// scoreAll runs scorer calls in batches on a bounded pool.
func (r *Reranker) scoreAll(ctx context.Context, question string, chunks []scoredChunk) ([]float64, error) {
	scores := make([]float64, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.config.MaxConcurrent)
	for start := 0; start < len(chunks); start += r.config.ScoreBatchSize {
		end := min(start+r.config.ScoreBatchSize, len(chunks))
		batch := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			batch = append(batch, c.content)
		}
		eg.Go(func() error {
			batchScores, err := r.scorer.Score(egCtx, question, batch)
			if err != nil {
				return err
			}
			copy(scores[start:end], batchScores)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// stableSoftmax normalizes scores to a distribution summing to 1,
// subtracting the max before exponentiating so large scores cannot
// overflow.
func stableSoftmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
