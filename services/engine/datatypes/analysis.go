// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// TextUnit is one sentence (or bounded chunk) of a document, the
// granularity of incremental analysis. Hash is the digest of the
// normalized content, so trivial formatting edits do not invalidate
// the cache.
type TextUnit struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Hash    string `json:"hash"`
}

// AnalysisResult is the classifier verdict for one text unit.
//
// On a cache hit the previous result is reused verbatim with Index and
// Text remapped to the unit's new position; the content is identical up
// to normalization.
type AnalysisResult struct {
	Index       int      `json:"index"`
	Text        string   `json:"text"`
	Flag        bool     `json:"flag"`
	Label       string   `json:"label"`
	Highlighted []string `json:"highlighted"`
	Explanation []string `json:"explanation"`
}

// CacheEntry is the persisted analysis result set for one document.
// It is only ever replaced wholesale; there are no partial updates, so
// a cancelled write leaves either the old or the new entry, never a
// mix.
type CacheEntry struct {
	DocID string           `json:"doc_id"`
	Units []AnalysisResult `json:"units"`
}
