// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"fmt"
	"strings"
)

// OpTag labels one span of a sequence diff.
type OpTag string

const (
	// OpEqual spans are identical in both sequences.
	OpEqual OpTag = "equal"
	// OpReplace spans differ between the sequences.
	OpReplace OpTag = "replace"
	// OpDelete spans exist only in the old sequence.
	OpDelete OpTag = "delete"
	// OpInsert spans exist only in the new sequence.
	OpInsert OpTag = "insert"
)

// Opcode describes one diff span: old[I1:I2] maps to new[J1:J2].
type Opcode struct {
	Tag OpTag
	I1  int
	I2  int
	J1  int
	J2  int
}

// Opcodes diffs two sequences with a longest-common-subsequence walk
// and returns replace/delete/insert/equal spans in order, the same
// opcode shape difflib's SequenceMatcher produces.
func Opcodes(old, new []string) []Opcode {
	// LCS length table: lcs[i][j] = LCS of old[i:], new[j:].
	lcs := make([][]int, len(old)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(new)+1)
	}
	for i := len(old) - 1; i >= 0; i-- {
		for j := len(new) - 1; j >= 0; j-- {
			if old[i] == new[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []Opcode
	emit := func(tag OpTag, i1, i2, j1, j2 int) {
		if n := len(ops); n > 0 && ops[n-1].Tag == tag {
			ops[n-1].I2 = i2
			ops[n-1].J2 = j2
			return
		}
		ops = append(ops, Opcode{Tag: tag, I1: i1, I2: i2, J1: j1, J2: j2})
	}

	i, j := 0, 0
	for i < len(old) && j < len(new) {
		switch {
		case old[i] == new[j]:
			emit(OpEqual, i, i+1, j, j+1)
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			emit(OpDelete, i, i+1, j, j)
			i++
		default:
			emit(OpInsert, i, i, j, j+1)
			j++
		}
	}
	if i < len(old) {
		emit(OpDelete, i, len(old), j, j)
	}
	if j < len(new) {
		emit(OpInsert, i, i, j, len(new))
	}

	// Pair adjacent delete+insert spans into replace, which is how a
	// modified chunk should read rather than as two separate edits.
	var merged []Opcode
	for k := 0; k < len(ops); k++ {
		if k+1 < len(ops) && ops[k].Tag == OpDelete && ops[k+1].Tag == OpInsert {
			merged = append(merged, Opcode{
				Tag: OpReplace,
				I1:  ops[k].I1, I2: ops[k].I2,
				J1: ops[k+1].J1, J2: ops[k+1].J2,
			})
			k++
			continue
		}
		if k+1 < len(ops) && ops[k].Tag == OpInsert && ops[k+1].Tag == OpDelete {
			merged = append(merged, Opcode{
				Tag: OpReplace,
				I1:  ops[k+1].I1, I2: ops[k+1].I2,
				J1: ops[k].J1, J2: ops[k].J2,
			})
			k++
			continue
		}
		merged = append(merged, ops[k])
	}
	return merged
}

// ChangeSet reports which chunk indices changed between two document
// versions. Modified and Inserted index into the new version, Deleted
// into the old one.
type ChangeSet struct {
	Modified []int
	Inserted []int
	Deleted  []int
}

// Empty reports whether no changes were detected.
func (c ChangeSet) Empty() bool {
	return len(c.Modified) == 0 && len(c.Inserted) == 0 && len(c.Deleted) == 0
}

// DocumentTracker holds the chunked state of one document and detects
// chunk-level changes between versions without semantic reanalysis.
//
// Not safe for concurrent use; each request owns its tracker.
type DocumentTracker struct {
	chunks       []string
	hashes       []string
	maxChunkSize int
}

// NewDocumentTracker creates a tracker with the given chunk size cap
// (runes per chunk; 0 means the default of 80).
func NewDocumentTracker(maxChunkSize int) *DocumentTracker {
	if maxChunkSize <= 0 {
		maxChunkSize = 80
	}
	return &DocumentTracker{maxChunkSize: maxChunkSize}
}

// Load replaces the tracked document with fullText.
func (t *DocumentTracker) Load(fullText string) {
	t.chunks = ChunkLines(fullText, t.maxChunkSize)
	t.hashes = hashChunks(t.chunks)
}

// Chunks returns the currently tracked chunks.
func (t *DocumentTracker) Chunks() []string {
	return t.chunks
}

// DetectChanges diffs the tracked version against newFullText,
// updates the tracked state to the new version, and reports changed
// chunk indices.
func (t *DocumentTracker) DetectChanges(newFullText string) ChangeSet {
	newChunks := ChunkLines(newFullText, t.maxChunkSize)
	newHashes := hashChunks(newChunks)

	var changes ChangeSet
	for _, op := range Opcodes(t.hashes, newHashes) {
		switch op.Tag {
		case OpReplace:
			for j := op.J1; j < op.J2; j++ {
				changes.Modified = append(changes.Modified, j)
			}
		case OpDelete:
			for i := op.I1; i < op.I2; i++ {
				changes.Deleted = append(changes.Deleted, i)
			}
		case OpInsert:
			for j := op.J1; j < op.J2; j++ {
				changes.Inserted = append(changes.Inserted, j)
			}
		}
	}

	t.chunks = newChunks
	t.hashes = newHashes
	return changes
}

// ContextWindow expands a window around the focus chunk, alternating
// right then left, adding whole chunks while the running token
// estimate stays under maxTokens. The focus chunk is always included.
func (t *DocumentTracker) ContextWindow(focusIndex, maxTokens int) (string, error) {
	if focusIndex < 0 || focusIndex >= len(t.chunks) {
		return "", fmt.Errorf("focus index %d out of range [0,%d)", focusIndex, len(t.chunks))
	}

	window := []string{t.chunks[focusIndex]}
	tokens := estimateTokens(t.chunks[focusIndex])
	left, right := focusIndex-1, focusIndex+1

	for tokens < maxTokens {
		added := false
		if right < len(t.chunks) {
			cost := estimateTokens(t.chunks[right])
			if tokens+cost <= maxTokens {
				window = append(window, t.chunks[right])
				tokens += cost
				added = true
			}
			right++
		}
		if left >= 0 {
			cost := estimateTokens(t.chunks[left])
			if tokens+cost <= maxTokens {
				window = append([]string{t.chunks[left]}, window...)
				tokens += cost
				added = true
			}
			left--
		}
		if !added {
			break
		}
	}
	return strings.Join(window, "\n"), nil
}
