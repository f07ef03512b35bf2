// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismsearch/prism/pkg/search"
)

func patientResult(id string, meta map[string]any) *search.SearchResult {
	r := search.NewResult(id, search.KindHealthcareData, "Patient "+id, 80, search.MatchName)
	for k, v := range meta {
		r.SetMetadata(k, v)
	}
	return r
}

func TestParseMaskSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		spec     string
		wantKind MaskKind
		wantKeep int
		wantErr  bool
	}{
		{name: "redact full", spec: "redact_full", wantKind: MaskRedactFull},
		{name: "redact part default keep", spec: "redact_part", wantKind: MaskRedactPart, wantKeep: 4},
		{name: "redact part explicit keep", spec: "redact_part(keep=6)", wantKind: MaskRedactPart, wantKeep: 6},
		{name: "hash", spec: "hash", wantKind: MaskHash},
		{name: "tokenize", spec: "tokenize", wantKind: MaskTokenize},
		{name: "initials", spec: "initials", wantKind: MaskInitials},
		{name: "year only", spec: "year_only", wantKind: MaskYearOnly},
		{name: "yyyy mm", spec: "yyyy_mm", wantKind: MaskYYYYMM},
		{name: "city only", spec: "city_only", wantKind: MaskCityOnly},
		{name: "null", spec: "null", wantKind: MaskNull},
		{name: "none", spec: "none", wantKind: MaskNone},
		{name: "unknown kind", spec: "rot13", wantErr: true},
		{name: "malformed keep", spec: "redact_part(keep=)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec, err := parseMaskSpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, search.ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, spec.kind)
			assert.Equal(t, tt.wantKeep, spec.keep)
		})
	}
}

func TestMasker_RedactPartKeepsTrailingCharacters(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	results := []*search.SearchResult{
		patientResult("p1", map[string]any{"ssn": "123-45-6789"}),
	}

	masked, fields, err := masker.MaskResults(results, map[string]string{"ssn": "redact_part(keep=4)"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ssn"}, fields)
	assert.Equal(t, "*******6789", masked[0].Metadata["ssn"])
	// Input untouched.
	assert.Equal(t, "123-45-6789", results[0].Metadata["ssn"])
}

func TestMasker_MaskKindSemantics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		spec  string
		value any
		want  any
	}{
		{name: "redact_full nils the value", spec: "redact_full", value: "secret", want: nil},
		{name: "redact_part shorter than keep passes through", spec: "redact_part", value: "abc", want: "abc"},
		{name: "redact_part default keep", spec: "redact_part", value: "123-45-6789", want: "*******6789"},
		{name: "hash is a sha256 prefix", spec: "hash", value: "123-45-6789", want: "01a54629efb95228"},
		{name: "initials collapses words", spec: "initials", value: "john ronald tolkien", want: "JRT"},
		{name: "year_only keeps four characters", spec: "year_only", value: "1986-03-15", want: "1986"},
		{name: "yyyy_mm keeps seven characters", spec: "yyyy_mm", value: "1986-03-15", want: "1986-03"},
		{name: "city_only keeps trailing segment", spec: "city_only", value: "123 Main St, Gotham", want: "Gotham"},
		{name: "city_only without comma passes through", spec: "city_only", value: "Gotham", want: "Gotham"},
		{name: "null nils the value", spec: "null", value: "x", want: nil},
		{name: "none nils the value", spec: "none", value: "x", want: nil},
		{name: "nil value stays nil under hash", spec: "hash", value: nil, want: nil},
		{name: "nil value stays nil under tokenize", spec: "tokenize", value: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			masker := NewMasker(0)
			results := []*search.SearchResult{
				patientResult("p1", map[string]any{"field": tt.value}),
			}

			masked, _, err := masker.MaskResults(results, map[string]string{"field": tt.spec})
			require.NoError(t, err)
			assert.Equal(t, tt.want, masked[0].Metadata["field"])
		})
	}
}

func TestMasker_HashIsDeterministic(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	masks := map[string]string{"ssn": "hash"}

	first, _, err := masker.MaskResults([]*search.SearchResult{
		patientResult("p1", map[string]any{"ssn": "123-45-6789"}),
	}, masks)
	require.NoError(t, err)

	second, _, err := masker.MaskResults([]*search.SearchResult{
		patientResult("p2", map[string]any{"ssn": "123-45-6789"}),
	}, masks)
	require.NoError(t, err)

	hashed, ok := first[0].Metadata["ssn"].(string)
	require.True(t, ok)
	assert.Len(t, hashed, 16)
	assert.Equal(t, hashed, second[0].Metadata["ssn"])
}

func TestMasker_TokenizeIsStableAcrossCalls(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	masks := map[string]string{"name": "tokenize"}

	first, _, err := masker.MaskResults([]*search.SearchResult{
		patientResult("p1", map[string]any{"name": "John Smith"}),
	}, masks)
	require.NoError(t, err)

	second, _, err := masker.MaskResults([]*search.SearchResult{
		patientResult("p2", map[string]any{"name": "John Smith"}),
	}, masks)
	require.NoError(t, err)

	token, ok := first[0].Metadata["name"].(string)
	require.True(t, ok)
	assert.Equal(t, "tok_e61a3587b3", token)
	assert.Equal(t, token, second[0].Metadata["name"])
}

func TestMasker_MaskingIsIdempotent(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	masks := map[string]string{
		"ssn":     "redact_part",
		"name":    "tokenize",
		"dob":     "year_only",
		"address": "city_only",
		"email":   "hash",
		"notes":   "redact_full",
	}

	results := []*search.SearchResult{
		patientResult("p1", map[string]any{
			"ssn":     "123-45-6789",
			"name":    "John Smith",
			"dob":     "1986-03-15",
			"address": "123 Main St, Gotham",
			"email":   "john@example.com",
			"notes":   "chronic asthma",
		}),
	}

	once, fields, err := masker.MaskResults(results, masks)
	require.NoError(t, err)
	twice, fieldsAgain, err := masker.MaskResults(once, masks)
	require.NoError(t, err)

	assert.Equal(t, fields, fieldsAgain)
	require.Len(t, twice, 1)
	assert.Equal(t, once[0].Metadata, twice[0].Metadata)
	// Re-masking a masked result is a pass-through, not another rewrite.
	assert.Same(t, once[0], twice[0])
}

func TestMasker_MaskedFieldsSortedAndRecorded(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	masks := map[string]string{
		"ssn":  "redact_part",
		"dob":  "year_only",
		"name": "initials",
	}

	masked, fields, err := masker.MaskResults([]*search.SearchResult{
		patientResult("p1", map[string]any{"ssn": "123-45-6789", "dob": "1986-03-15", "name": "John Smith"}),
	}, masks)
	require.NoError(t, err)

	assert.Equal(t, []string{"dob", "name", "ssn"}, fields)
	assert.Equal(t, fields, masked[0].Metadata["masked_fields"])
}

func TestMasker_MaskedNameSyncsTitle(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	r := patientResult("p1", map[string]any{"name": "John Smith"})
	r.Title = "John Smith"

	masked, _, err := masker.MaskResults([]*search.SearchResult{r}, map[string]string{"name": "initials"})
	require.NoError(t, err)

	assert.Equal(t, "JS", masked[0].Metadata["name"])
	assert.Equal(t, "JS", masked[0].Title)
	assert.Equal(t, "John Smith", r.Title)
}

func TestMasker_AbsentFieldIsSetToNil(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	masked, _, err := masker.MaskResults([]*search.SearchResult{
		patientResult("p1", nil),
	}, map[string]string{"ssn": "redact_full"})
	require.NoError(t, err)

	value, present := masked[0].Metadata["ssn"]
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestMasker_UnknownMaskKindFails(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	_, _, err := masker.MaskResults([]*search.SearchResult{
		patientResult("p1", map[string]any{"ssn": "123-45-6789"}),
	}, map[string]string{"ssn": "scramble"})

	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrInvalidPolicy)
}

func TestMasker_NoMasksPassesThrough(t *testing.T) {
	t.Parallel()

	masker := NewMasker(0)
	results := []*search.SearchResult{patientResult("p1", map[string]any{"ssn": "123-45-6789"})}

	masked, fields, err := masker.MaskResults(results, nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.Same(t, results[0], masked[0])
}
