// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package seeding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismsearch/prism/pkg/search"
)

func TestGenerate_HealthcareShape(t *testing.T) {
	t.Parallel()

	rows := Generate("healthcare", 0, 10)
	require.Len(t, rows, 10)

	for i, r := range rows {
		assert.Equal(t, fmt.Sprintf("healthcare-%d", i), r.ID)
		assert.Equal(t, search.KindHealthcareData, r.Kind)
		assert.Equal(t, fmt.Sprintf("Patient %d", i), r.Title)
		assert.Equal(t, search.MatchName, r.MatchType)
		assert.GreaterOrEqual(t, r.RelevanceScore, search.MinRelevanceScore)
		assert.LessOrEqual(t, r.RelevanceScore, search.MaxRelevanceScore)

		ssn, ok := r.MetadataString("ssn")
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("123-45-%04d", i), ssn)

		region, ok := r.MetadataString("region")
		require.True(t, ok)
		if i%2 == 0 {
			assert.Equal(t, "NE", region)
		} else {
			assert.Equal(t, "SW", region)
		}

		clinician, ok := r.MetadataString("clinician_id")
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("clin-%d", i%50), clinician)

		dataset, ok := r.MetadataString(search.FilterDataset)
		require.True(t, ok)
		assert.Equal(t, "healthcare", dataset)

		dob, ok := r.MetadataString("date_of_birth")
		require.True(t, ok)
		assert.Equal(t, "1986-03-15", dob)

		addr, ok := r.MetadataString("address")
		require.True(t, ok)
		assert.Equal(t, "123 Main St, Gotham", addr)
	}
}

func TestGenerate_ConditionsCycle(t *testing.T) {
	t.Parallel()

	rows := Generate("healthcare", 0, 7)
	want := []string{"asthma", "diabetes", "hypertension", "flu", "allergy", "asthma", "diabetes"}
	for i, r := range rows {
		cond, ok := r.MetadataString("conditions")
		require.True(t, ok)
		assert.Equal(t, want[i], cond, "row %d", i)
		assert.Equal(t, want[i], r.Category)
		assert.Contains(t, r.Tags, want[i])
	}
}

func TestGenerate_OffsetContinuesSequence(t *testing.T) {
	t.Parallel()

	rows := Generate("patients", 100, 3)
	require.Len(t, rows, 3)
	assert.Equal(t, "patients-100", rows[0].ID)
	assert.Equal(t, "patients-101", rows[1].ID)
	assert.Equal(t, "patients-102", rows[2].ID)

	// clinician pool wraps at 50
	clinician, ok := rows[0].MetadataString("clinician_id")
	require.True(t, ok)
	assert.Equal(t, "clin-0", clinician)
}

func TestGenerate_GenericDataset(t *testing.T) {
	t.Parallel()

	rows := Generate("books", 0, 2)
	require.Len(t, rows, 2)

	assert.Equal(t, "books-0", rows[0].ID)
	assert.Equal(t, search.KindCustom, rows[0].Kind)
	assert.Equal(t, "Books record 0", rows[0].Title)
	assert.Equal(t, search.MatchTitle, rows[0].MatchType)
	assert.Equal(t, "public", rows[0].Visibility)

	_, hasSSN := rows[0].MetadataString("ssn")
	assert.False(t, hasSSN, "generic rows must not carry governed fields")

	dataset, ok := rows[0].MetadataString(search.FilterDataset)
	require.True(t, ok)
	assert.Equal(t, "books", dataset)
}

func TestGenerate_DatasetKindHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dataset    string
		healthcare bool
	}{
		{dataset: "healthcare", healthcare: true},
		{dataset: "health_records", healthcare: true},
		{dataset: "patients", healthcare: true},
		{dataset: "clinic-east", healthcare: true},
		{dataset: "books", healthcare: false},
		{dataset: "retail", healthcare: false},
	}

	for _, tt := range tests {
		t.Run(tt.dataset, func(t *testing.T) {
			t.Parallel()

			rows := Generate(tt.dataset, 0, 1)
			require.Len(t, rows, 1)
			if tt.healthcare {
				assert.Equal(t, search.KindHealthcareData, rows[0].Kind)
			} else {
				assert.Equal(t, search.KindCustom, rows[0].Kind)
			}
		})
	}
}

func TestGenerate_ScoresStayInRange(t *testing.T) {
	t.Parallel()

	for _, r := range Generate("healthcare", 0, 200) {
		assert.GreaterOrEqual(t, r.RelevanceScore, search.MinRelevanceScore)
		assert.LessOrEqual(t, r.RelevanceScore, search.MaxRelevanceScore)
	}
}
