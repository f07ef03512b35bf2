// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package search

import "time"

// SortBy selects the ordering key for search results.
type SortBy string

// Supported sort keys.
const (
	SortByRelevance SortBy = "relevance"
	SortByDate      SortBy = "date"
	SortByName      SortBy = "name"
	SortByCustom    SortBy = "custom"
)

// SortOrder selects ascending or descending ordering.
type SortOrder string

// Supported sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Default option values applied by DefaultOptions and ApplyDefaults.
const (
	DefaultLimit  = 20
	DefaultOffset = 0
)

// Extra filter keys shared between the governance layer and the providers.
// Governance injects them as row-security hints; providers that can translate
// them push the restriction into the backend query.
const (
	FilterDataset        = "dataset"
	FilterAllowedRegions = "allowed_regions"
	FilterClinicianID    = "clinician_id"
)

// DateRange bounds results by creation time. Nil ends are unbounded.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// SearchFilters narrows a query. Backends translate what they can; the
// orchestrator re-filters post-hoc so untranslatable filters still hold.
type SearchFilters struct {
	Kinds      []ResultKind `json:"kinds,omitempty"`
	Categories []string     `json:"categories,omitempty"`
	Languages  []string     `json:"languages,omitempty"`
	Visibility string       `json:"visibility,omitempty"`
	DateRange  *DateRange   `json:"date_range,omitempty"`

	// Extra holds arbitrary key/value filters, matched against result
	// metadata. The governance layer injects row-security filters here.
	Extra map[string]any `json:"extra,omitempty"`
}

// IsZero reports whether no filter criterion is set.
func (f *SearchFilters) IsZero() bool {
	if f == nil {
		return true
	}
	return len(f.Kinds) == 0 && len(f.Categories) == 0 && len(f.Languages) == 0 &&
		f.Visibility == "" && f.DateRange == nil && len(f.Extra) == 0
}

// SearchOptions tunes a single search call.
//
// The zero value disables caching and fallback; use DefaultOptions for the
// documented defaults (caching and fallback on).
type SearchOptions struct {
	// Limit caps the number of returned results. Zero means DefaultLimit.
	Limit int `json:"limit"`

	// Offset skips results for pagination.
	Offset int `json:"offset"`

	// Filters narrows the result set.
	Filters *SearchFilters `json:"filters,omitempty"`

	// SortBy and SortOrder fix the result ordering. Empty values mean
	// relevance descending.
	SortBy    SortBy    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`

	// CacheEnabled allows write-through caching of database results.
	CacheEnabled bool `json:"cache_enabled"`

	// CacheTTL overrides the configured default TTL for this call's
	// write-through entry. Zero uses the configured default.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// FallbackEnabled allows the orchestrator to try the fallback backend
	// after a primary failure.
	FallbackEnabled bool `json:"fallback_enabled"`

	// Timeout bounds the whole search call. Zero means no per-call bound.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DefaultOptions returns the documented per-call defaults.
func DefaultOptions() *SearchOptions {
	return &SearchOptions{
		Limit:           DefaultLimit,
		Offset:          DefaultOffset,
		SortBy:          SortByRelevance,
		SortOrder:       SortDesc,
		CacheEnabled:    true,
		FallbackEnabled: true,
	}
}

// ApplyDefaults fills unset limit and ordering fields in place. Boolean
// fields are left as the caller set them.
func (o *SearchOptions) ApplyDefaults() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = DefaultOffset
	}
	if o.SortBy == "" {
		o.SortBy = SortByRelevance
	}
	if o.SortOrder == "" {
		o.SortOrder = SortDesc
	}
}

// Clone returns a copy with its own filters so callers can add filters
// (row-level security does) without mutating the caller's options.
func (o *SearchOptions) Clone() *SearchOptions {
	out := *o
	if o.Filters != nil {
		f := *o.Filters
		if o.Filters.Extra != nil {
			f.Extra = make(map[string]any, len(o.Filters.Extra))
			for k, v := range o.Filters.Extra {
				f.Extra[k] = v
			}
		}
		if o.Filters.Kinds != nil {
			f.Kinds = append([]ResultKind(nil), o.Filters.Kinds...)
		}
		if o.Filters.Categories != nil {
			f.Categories = append([]string(nil), o.Filters.Categories...)
		}
		if o.Filters.Languages != nil {
			f.Languages = append([]string(nil), o.Filters.Languages...)
		}
		out.Filters = &f
	}
	return &out
}
