// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"crypto/md5" // #nosec G501 - key derivation, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/prismsearch/prism/pkg/search"
)

// cacheKeyPrefix namespaces write-through entries inside the cache
// provider's keyspace.
const cacheKeyPrefix = "search:"

// keyPayload is the canonical shape hashed into a cache key. Fields are
// declared in lexicographic tag order so the marshaled JSON carries sorted
// keys at every level (encoding/json already sorts map keys).
type keyPayload struct {
	Filters   map[string]any   `json:"filters"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	Query     string           `json:"query"`
	SortBy    search.SortBy    `json:"sort_by"`
	SortOrder search.SortOrder `json:"sort_order"`
}

// cacheKey derives the deterministic write-through key for one query and
// option set. Identical query, pagination, ordering, and filter combinations
// map to the same key regardless of filter construction order.
func cacheKey(query string, opts *search.SearchOptions) string {
	payload := keyPayload{
		Filters:   canonicalFilters(opts.Filters),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
		Query:     query,
		SortBy:    opts.SortBy,
		SortOrder: opts.SortOrder,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Filters hold JSON-encodable values in practice. If not, fall back
		// to a key that is still deterministic for the same options.
		data = fmt.Appendf(nil, "%s|%d|%d|%s|%s",
			query, opts.Limit, opts.Offset, opts.SortBy, opts.SortOrder)
	}

	sum := md5.Sum(data) // #nosec G401 - key derivation, not a security boundary
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// canonicalFilters flattens SearchFilters into a single map so the marshaler
// sorts every key. Nil and empty filters canonicalize identically.
func canonicalFilters(f *search.SearchFilters) map[string]any {
	m := make(map[string]any)
	if f == nil {
		return m
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if len(f.Categories) > 0 {
		m["categories"] = f.Categories
	}
	if len(f.Languages) > 0 {
		m["languages"] = f.Languages
	}
	if f.Visibility != "" {
		m["visibility"] = f.Visibility
	}
	if f.DateRange != nil {
		m["date_range"] = f.DateRange
	}
	for k, v := range f.Extra {
		m[k] = v
	}
	return m
}
