// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyValid(t *testing.T) {
	for _, s := range AllStrategies() {
		assert.True(t, s.Valid(), "strategy %q should be valid", s)
	}
	assert.False(t, Strategy("chathistory_retrieve").Valid())
	assert.False(t, Strategy("").Valid())
}

func TestStrategyRequiresRetrieval(t *testing.T) {
	assert.True(t, StrategyStandard.RequiresRetrieval())
	assert.True(t, StrategyBalanced.RequiresRetrieval())
	assert.False(t, StrategyTitleGeneration.RequiresRetrieval())
	assert.False(t, StrategyNoRetrieval.RequiresRetrieval())
	assert.False(t, StrategyNoGenerate.RequiresRetrieval())
}

func TestDateRangeIntEncoding(t *testing.T) {
	r := DateRange{
		Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC),
	}
	assert.Equal(t, int64(20240601), r.StartInt())
	assert.Equal(t, int64(20250601), r.EndInt())
}

func TestPlanValidate(t *testing.T) {
	q := "housing policy stances"
	valid := &RetrievalPlan{
		Strategy:          StrategyStandard,
		DataTypes:         []string{"article"},
		RewrittenQuestion: &q,
		DateRange: &DateRange{
			Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		GenerationRequired: true,
	}
	require.NoError(t, valid.Validate())

	t.Run("unknown strategy", func(t *testing.T) {
		p := &RetrievalPlan{Strategy: "vibes"}
		assert.Error(t, p.Validate())
	})

	t.Run("no_generate carries no query or range", func(t *testing.T) {
		p := &RetrievalPlan{Strategy: StrategyNoGenerate, RewrittenQuestion: &q}
		assert.Error(t, p.Validate())

		p = &RetrievalPlan{Strategy: StrategyNoGenerate, DateRange: &DateRange{}}
		assert.Error(t, p.Validate())

		p = &RetrievalPlan{Strategy: StrategyNoGenerate}
		assert.NoError(t, p.Validate())
	})

	t.Run("inverted range", func(t *testing.T) {
		p := &RetrievalPlan{
			Strategy: StrategyStandard,
			DateRange: &DateRange{
				Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			},
		}
		assert.Error(t, p.Validate())
	})
}

func TestFlattenGroupsTagsGroup(t *testing.T) {
	groups := []EvidenceGroup{
		{Group: "ruling", Documents: []EvidenceDocument{{Content: "a"}, {Content: "b"}}},
		{Group: "opposition", Documents: []EvidenceDocument{{Content: "c"}}},
	}

	docs := FlattenGroups(groups)
	require.Len(t, docs, 3)
	assert.Equal(t, "ruling", docs[0].Metadata["group"])
	assert.Equal(t, "opposition", docs[2].Metadata["group"])
}
