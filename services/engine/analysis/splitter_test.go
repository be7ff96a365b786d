// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "latin sentences",
			text: "First sentence. Second one! A third?",
			want: []string{"First sentence.", "Second one!", "A third?"},
		},
		{
			name: "korean sentences",
			text: "문장A. 문장B.",
			want: []string{"문장A.", "문장B."},
		},
		{
			name: "decimal point is not a boundary",
			text: "Growth was 3.5 percent. Inflation fell.",
			want: []string{"Growth was 3.5 percent.", "Inflation fell."},
		},
		{
			name: "newline is a boundary",
			text: "no terminator here\nsecond line",
			want: []string{"no terminator here", "second line"},
		},
		{
			name: "empty input",
			text: "   \n  ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestNormalizeCollapsesFormatting(t *testing.T) {
	assert.Equal(t, Normalize("a  b\tc."), Normalize("a b c"))
	assert.Equal(t, "문장A", Normalize("  문장A.  "))
	assert.NotEqual(t, Normalize("문장A"), Normalize("문장B"))
}

func TestHashContentStableUnderFormatting(t *testing.T) {
	// Trivial formatting edits must not invalidate the cache.
	assert.Equal(t, HashContent("The bill  passed."), HashContent("The bill passed"))
	assert.NotEqual(t, HashContent("The bill passed."), HashContent("The bill failed."))
}

func TestSplitUnitsIndexesContiguously(t *testing.T) {
	units := SplitUnits("One. Two. Three.")
	require.Len(t, units, 3)
	for i, u := range units {
		assert.Equal(t, i, u.Index)
		assert.NotEmpty(t, u.Hash)
	}
}

func TestChunkLinesHardSplitsLongLines(t *testing.T) {
	long := strings.Repeat("x", 200)
	chunks := ChunkLines("short\n"+long, 80)

	require.Len(t, chunks, 4)
	assert.Equal(t, "short", chunks[0])
	assert.Len(t, chunks[1], 80)
	assert.Len(t, chunks[2], 80)
	assert.Len(t, chunks[3], 40)
}

func TestChunkLinesCountsRunesNotBytes(t *testing.T) {
	// 120 Hangul syllables are 360 bytes; the cap is on runes.
	long := strings.Repeat("가", 120)
	chunks := ChunkLines(long, 80)

	require.Len(t, chunks, 2)
	assert.Equal(t, 80, len([]rune(chunks[0])))
	assert.Equal(t, 40, len([]rune(chunks[1])))
}
