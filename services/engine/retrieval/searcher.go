// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval fetches evidence passages from the vector index.
//
// Two modes: standard (one ranked similarity query under metadata
// filters) and balanced (parallel per-group queries so opposing
// perspectives each get representation).
package retrieval

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
)

// PassageClassName is the Weaviate class holding indexed corpus chunks.
const PassageClassName = "Passage"

// Filters narrows a similarity query by indexed metadata.
type Filters struct {
	// DataTypes restricts to evidence categories (ContainsAny).
	DataTypes []string

	// DateRange restricts by the dateInt property. Nil means unbounded.
	DateRange *datatypes.DateRange

	// Group restricts to one perspective group. Empty means all.
	Group string
}

// Searcher runs similarity queries against the index. The interface
// exists so the retriever and its tests do not need a live Weaviate.
type Searcher interface {
	Search(ctx context.Context, query string, f Filters, limit int) ([]datatypes.EvidenceDocument, error)
}

// WeaviateSearcher implements Searcher over a Weaviate instance.
//
// Thread Safety: safe for concurrent use; the underlying client is.
type WeaviateSearcher struct {
	client *weaviate.Client
}

// NewWeaviateSearcher wraps a connected Weaviate client.
func NewWeaviateSearcher(client *weaviate.Client) (*WeaviateSearcher, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	return &WeaviateSearcher{client: client}, nil
}

// Search runs a NearText query with the given metadata filters.
func (s *WeaviateSearcher) Search(ctx context.Context, query string, f Filters, limit int) ([]datatypes.EvidenceDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	var operands []*filters.WhereBuilder
	if len(f.DataTypes) > 0 {
		operands = append(operands, filters.Where().
			WithPath([]string{"dataType"}).
			WithOperator(filters.ContainsAny).
			WithValueString(f.DataTypes...))
	}
	if f.DateRange != nil {
		operands = append(operands,
			filters.Where().
				WithPath([]string{"dateInt"}).
				WithOperator(filters.GreaterThanEqual).
				WithValueInt(f.DateRange.StartInt()),
			filters.Where().
				WithPath([]string{"dateInt"}).
				WithOperator(filters.LessThanEqual).
				WithValueInt(f.DateRange.EndInt()))
	}
	if f.Group != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"stance"}).
			WithOperator(filters.Equal).
			WithValueString(f.Group))
	}

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "title"},
		{Name: "source"},
		{Name: "dataType"},
		{Name: "stance"},
		{Name: "dateInt"},
		{Name: "_additional { certainty }"},
	}

	builder := s.client.GraphQL().Get().
		WithClassName(PassageClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit)
	if len(operands) > 0 {
		builder = builder.WithWhere(filters.Where().
			WithOperator(filters.And).
			WithOperands(operands))
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("passage search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("passage search: %s", result.Errors[0].Message)
	}

	return parsePassages(result), nil
}

// parsePassages flattens the GraphQL response into evidence documents.
// Malformed objects are skipped rather than failing the query.
func parsePassages(result *models.GraphQLResponse) []datatypes.EvidenceDocument {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[PassageClassName].([]interface{})
	if !ok {
		return nil
	}

	docs := make([]datatypes.EvidenceDocument, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		doc := datatypes.EvidenceDocument{
			Content: getString(m, "content"),
			Metadata: map[string]any{
				"title":    getString(m, "title"),
				"source":   getString(m, "source"),
				"dataType": getString(m, "dataType"),
				"stance":   getString(m, "stance"),
				"dateInt":  getFloat64(m, "dateInt"),
			},
		}
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			doc.Score = getFloat64(add, "certainty")
		}
		docs = append(docs, doc)
	}
	return docs
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getFloat64(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}
