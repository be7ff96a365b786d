// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis implements incremental document analysis: sentence
// and chunk splitting, content-hash change detection, the analysis
// cache, and the classifier merge that keeps re-analysis cost
// proportional to the number of changed units rather than document
// size.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
)

// sentenceEnders terminate a sentence when followed by whitespace or
// end of text. Covers Latin and CJK full stops.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
	'…': true,
}

// SplitSentences splits text into sentences on terminal punctuation
// and newlines. The terminator stays attached to its sentence. Empty
// fragments are dropped.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if sentenceEnders[r] {
			// A digit follows in decimals like "3.5"; keep going.
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) && runes[i+1] != '\n' {
				continue
			}
			flush()
		}
	}
	flush()
	return sentences
}

// Normalize collapses runs of whitespace to single spaces and strips
// trailing terminal punctuation, so trivial formatting edits hash to
// the same value as the original sentence.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return sentenceEnders[r] || unicode.IsSpace(r)
	})
}

// HashContent returns the hex SHA-256 digest of the normalized content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}

// SplitUnits splits a document into sentence-level text units with
// content hashes, indexed 0..N-1 with no gaps.
func SplitUnits(text string) []datatypes.TextUnit {
	sentences := SplitSentences(text)
	units := make([]datatypes.TextUnit, len(sentences))
	for i, s := range sentences {
		units[i] = datatypes.TextUnit{
			Index:   i,
			Content: s,
			Hash:    HashContent(s),
		}
	}
	return units
}

// ChunkLines splits text into line-bounded chunks capped at
// maxChunkSize runes. Lines longer than the cap are hard-split. Used
// for context windowing, where chunk identity matters more than
// sentence boundaries.
func ChunkLines(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 80
	}

	var chunks []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) <= maxChunkSize {
			chunks = append(chunks, line)
			continue
		}
		for start := 0; start < len(runes); start += maxChunkSize {
			end := start + maxChunkSize
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, string(runes[start:end]))
		}
	}
	return chunks
}

// hashChunks returns the content hash of every chunk in order.
func hashChunks(chunks []string) []string {
	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		hashes[i] = HashContent(c)
	}
	return hashes
}

// estimateTokens is a cheap whitespace-based token estimate used for
// context window budgeting.
func estimateTokens(text string) int {
	return len(strings.Fields(text))
}
