// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// EvidenceDocument is one retrieved passage with its index metadata and
// relevance score. Transient: produced by the retriever, filtered by
// the reranker, consumed by the generator.
type EvidenceDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Score is the similarity certainty from the vector index, later
	// overwritten by the reranker's normalized relevance score.
	Score float64 `json:"score"`
}

// Source returns the metadata source field, or "" when absent.
func (d EvidenceDocument) Source() string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

// EvidenceGroup holds the results of one per-perspective query in
// balanced retrieval. Groups stay separate so downstream consumers can
// present multiple perspectives instead of one list dominated by the
// largest corpus.
type EvidenceGroup struct {
	Group     string             `json:"group"`
	Documents []EvidenceDocument `json:"documents"`
}

// FlattenGroups concatenates grouped results in group order, tagging
// each document's metadata with its group. Used by stages that need a
// flat list (reranking) while the grouping survives in metadata.
func FlattenGroups(groups []EvidenceGroup) []EvidenceDocument {
	var docs []EvidenceDocument
	for _, g := range groups {
		for _, d := range g.Documents {
			if d.Metadata == nil {
				d.Metadata = map[string]any{}
			}
			d.Metadata["group"] = g.Group
			docs = append(docs, d)
		}
	}
	return docs
}
