// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history persists answered chat turns per document so the
// generator can summarize prior conversation instead of replaying it.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// ConversationClassName is the Weaviate class holding chat turns.
const ConversationClassName = "Conversation"

// Turn is one answered question on a document.
type Turn struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}

// Store reads and writes conversation turns.
type Store interface {
	// Recent returns up to limit turns for the document, oldest first.
	Recent(ctx context.Context, docID string, limit int) ([]Turn, error)

	// Save records one answered turn.
	Save(ctx context.Context, docID, question, answer string) error
}

// WeaviateStore implements Store on the shared Weaviate instance.
//
// Thread Safety: safe for concurrent use.
type WeaviateStore struct {
	client *weaviate.Client
	now    func() time.Time
}

// NewWeaviateStore wraps a connected Weaviate client.
func NewWeaviateStore(client *weaviate.Client) (*WeaviateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	return &WeaviateStore{client: client, now: time.Now}, nil
}

// Recent fetches the latest turns for the document. Weaviate returns
// them newest first; they are reversed so callers read chronologically.
func (s *WeaviateStore) Recent(ctx context.Context, docID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 5
	}

	where := filters.Where().
		WithPath([]string{"docId"}).
		WithOperator(filters.Equal).
		WithValueString(docID)

	result, err := s.client.GraphQL().Get().
		WithClassName(ConversationClassName).
		WithFields(
			graphql.Field{Name: "question"},
			graphql.Field{Name: "answer"},
			graphql.Field{Name: "timestamp"},
		).
		WithWhere(where).
		WithSort(graphql.Sort{Path: []string{"timestamp"}, Order: graphql.Desc}).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching conversation history: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("fetching conversation history: %s", result.Errors[0].Message)
	}

	return parseTurns(result), nil
}

// Save records one answered turn with the current timestamp.
func (s *WeaviateStore) Save(ctx context.Context, docID, question, answer string) error {
	_, err := s.client.Data().Creator().
		WithClassName(ConversationClassName).
		WithProperties(map[string]interface{}{
			"docId":     docID,
			"question":  question,
			"answer":    answer,
			"timestamp": s.now().UnixMilli(),
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("saving conversation turn: %w", err)
	}
	return nil
}

// parseTurns flattens the GraphQL response and reverses it into
// chronological order. Malformed objects are skipped.
func parseTurns(result *models.GraphQLResponse) []Turn {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[ConversationClassName].([]interface{})
	if !ok {
		return nil
	}

	turns := make([]Turn, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		turn := Turn{}
		if v, ok := m["question"].(string); ok {
			turn.Question = v
		}
		if v, ok := m["answer"].(string); ok {
			turn.Answer = v
		}
		if v, ok := m["timestamp"].(float64); ok {
			turn.Timestamp = int64(v)
		}
		turns = append(turns, turn)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}
