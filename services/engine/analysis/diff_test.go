// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackChanges(t *testing.T, oldDoc, newDoc string) ChangeSet {
	t.Helper()
	tracker := NewDocumentTracker(80)
	tracker.Load(oldDoc)
	return tracker.DetectChanges(newDoc)
}

func TestDetectChangesModified(t *testing.T) {
	changes := trackChanges(t, "a\nb\nc", "a\nx\nc")

	assert.Equal(t, []int{1}, changes.Modified)
	assert.Empty(t, changes.Inserted)
	assert.Empty(t, changes.Deleted)
}

func TestDetectChangesInserted(t *testing.T) {
	changes := trackChanges(t, "a\nb", "a\nb\nc")

	assert.Equal(t, []int{2}, changes.Inserted)
	assert.Empty(t, changes.Modified)
	assert.Empty(t, changes.Deleted)
}

func TestDetectChangesDeleted(t *testing.T) {
	changes := trackChanges(t, "a\nb\nc", "a\nc")

	assert.Equal(t, []int{1}, changes.Deleted)
	assert.Empty(t, changes.Modified)
	assert.Empty(t, changes.Inserted)
}

func TestDetectChangesNoChange(t *testing.T) {
	changes := trackChanges(t, "a\nb\nc", "a\nb\nc")
	assert.True(t, changes.Empty())
}

func TestDetectChangesUpdatesTrackedState(t *testing.T) {
	tracker := NewDocumentTracker(80)
	tracker.Load("a\nb")
	tracker.DetectChanges("a\nx")

	// A second diff against the same text sees no changes.
	assert.True(t, tracker.DetectChanges("a\nx").Empty())
}

func TestOpcodesMergeAdjacentEdits(t *testing.T) {
	ops := Opcodes([]string{"a", "b", "c"}, []string{"a", "x", "c"})

	require.Len(t, ops, 3)
	assert.Equal(t, OpEqual, ops[0].Tag)
	assert.Equal(t, OpReplace, ops[1].Tag)
	assert.Equal(t, 1, ops[1].J1)
	assert.Equal(t, 2, ops[1].J2)
	assert.Equal(t, OpEqual, ops[2].Tag)
}

func TestContextWindowRespectsBudget(t *testing.T) {
	tracker := NewDocumentTracker(80)
	tracker.Load("one one\ntwo two\nthree three\nfour four\nfive five")

	// Focus plus a 2-token budget on each neighbor.
	window, err := tracker.ContextWindow(2, 6)
	require.NoError(t, err)
	assert.Equal(t, "two two\nthree three\nfour four", window)
}

func TestContextWindowFocusAlwaysIncluded(t *testing.T) {
	tracker := NewDocumentTracker(80)
	tracker.Load("alpha beta gamma delta\nshort")

	// Budget below the focus chunk's own size still returns the focus.
	window, err := tracker.ContextWindow(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "alpha beta gamma delta", window)
}

func TestContextWindowOutOfRange(t *testing.T) {
	tracker := NewDocumentTracker(80)
	tracker.Load("only line")

	_, err := tracker.ContextWindow(5, 100)
	assert.Error(t, err)
}

func TestContextWindowFullDocumentFits(t *testing.T) {
	tracker := NewDocumentTracker(80)
	tracker.Load("a b\nc d\ne f")

	window, err := tracker.ContextWindow(1, 100)
	require.NoError(t, err)
	assert.Equal(t, "a b\nc d\ne f", window)
}
