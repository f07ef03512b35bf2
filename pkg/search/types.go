// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package search defines the core domain types for the prism search façade:
// results, options, security contexts, backend health, and the backend
// provider contract shared by the orchestrator and its providers.
package search

import (
	"fmt"
	"time"
)

// This file contains shared domain types used across the search subpackages.

// ResultKind identifies the entity class a search result describes.
// The set is closed; provider-specific kinds use KindCustom with a
// discriminator in the result metadata.
type ResultKind string

// Known result kinds.
const (
	KindBook           ResultKind = "book"
	KindUser           ResultKind = "user"
	KindAuthor         ResultKind = "author"
	KindBookClub       ResultKind = "book_club"
	KindQA             ResultKind = "qa"
	KindFinancialData  ResultKind = "financial_data"
	KindHealthcareData ResultKind = "healthcare_data"
	KindRetailData     ResultKind = "retail_data"
	KindEducationData  ResultKind = "education_data"
	KindRealEstateData ResultKind = "real_estate_data"
	KindCustom         ResultKind = "custom"
)

// MatchType identifies which field of the underlying document matched the
// query. MatchCustom carries its discriminator in the result metadata under
// the "match_detail" key.
type MatchType string

// Known match types.
const (
	MatchTitle       MatchType = "title"
	MatchAuthor      MatchType = "author"
	MatchDescription MatchType = "description"
	MatchUsername    MatchType = "username"
	MatchName        MatchType = "name"
	MatchTag         MatchType = "tag"
	MatchCategory    MatchType = "category"
	MatchLanguage    MatchType = "language"
	MatchISBN        MatchType = "isbn"
	MatchUploader    MatchType = "uploader"
	MatchQuestion    MatchType = "question"
	MatchAnswer      MatchType = "answer"
	MatchCustom      MatchType = "custom"
)

// Relevance score bounds. Every score is clamped into this range on
// construction and after every transformation.
const (
	MinRelevanceScore = 0
	MaxRelevanceScore = 100
)

// SearchResult is one row returned by a backend, normalized so the merge
// engine and the governance layer can treat all backends uniformly.
type SearchResult struct {
	// ID uniquely identifies the result within a response. Hybrid merging
	// deduplicates by this field.
	ID string `json:"id"`

	// Kind is the entity class of the result.
	Kind ResultKind `json:"kind"`

	// Title is the primary display string.
	Title string `json:"title"`

	// RelevanceScore ranks the result, always within
	// [MinRelevanceScore, MaxRelevanceScore].
	RelevanceScore int `json:"relevance_score"`

	// MatchType records which document field matched the query.
	MatchType MatchType `json:"match_type"`

	// Optional descriptor fields. Providers populate what they know.
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	Category    string     `json:"category,omitempty"`
	Language    string     `json:"language,omitempty"`
	Visibility  string     `json:"visibility,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`

	// Metadata carries provider- and governance-specific fields (dataset
	// columns, merge annotations, masking targets). Values must be
	// JSON-serializable.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewResult constructs a SearchResult with the relevance score clamped.
func NewResult(id string, kind ResultKind, title string, score int, match MatchType) *SearchResult {
	return &SearchResult{
		ID:             id,
		Kind:           kind,
		Title:          title,
		RelevanceScore: ClampScore(score),
		MatchType:      match,
	}
}

// SetRelevanceScore updates the score, clamping it into the valid range.
func (r *SearchResult) SetRelevanceScore(score int) {
	r.RelevanceScore = ClampScore(score)
}

// SetMetadata stores one metadata field, allocating the map on first use.
func (r *SearchResult) SetMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// MetadataString reads a metadata field as a string. Non-string values are
// stringified; absent values return ("", false).
func (r *SearchResult) MetadataString(key string) (string, bool) {
	if r.Metadata == nil {
		return "", false
	}
	v, ok := r.Metadata[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// Clone returns a copy of the result with its own tags slice and metadata
// map. The merge engine and the governance layer annotate and rewrite
// results; cloning keeps backend-owned instances (notably cached ones)
// untouched.
func (r *SearchResult) Clone() *SearchResult {
	out := *r
	if r.Tags != nil {
		out.Tags = make([]string, len(r.Tags))
		copy(out.Tags, r.Tags)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// ClampScore forces a relevance score into [MinRelevanceScore, MaxRelevanceScore].
func ClampScore(score int) int {
	if score < MinRelevanceScore {
		return MinRelevanceScore
	}
	if score > MaxRelevanceScore {
		return MaxRelevanceScore
	}
	return score
}
