// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package merge combines cache and database result lists for hybrid search.
package merge

import (
	"fmt"
	"math"
	"sort"

	"github.com/prismsearch/prism/pkg/search"
)

// Algorithm selects how hybrid results are combined.
type Algorithm string

const (
	// AlgorithmUnion keeps every unique id, cache instance winning duplicates.
	AlgorithmUnion Algorithm = "union"
	// AlgorithmIntersection keeps ids present in both lists.
	AlgorithmIntersection Algorithm = "intersection"
	// AlgorithmWeighted recomputes scores from source weights. Default.
	AlgorithmWeighted Algorithm = "weighted"
)

// Default weights favor the cache, which holds curated or recently warmed
// entries.
const (
	DefaultCacheWeight = 0.7
	DefaultDBWeight    = 0.3
)

// Metadata keys written by the weighted algorithm.
const (
	metaSource        = "source"
	metaOriginalScore = "original_score"
	metaCacheScore    = "cache_score"
	metaDBScore       = "db_score"
	metaCombinedScore = "combined_score"
)

// Source values for the weighted algorithm's metadata annotation.
const (
	sourceCache    = "cache"
	sourceDatabase = "database"
	sourceHybrid   = "hybrid"
)

// Config tunes a Merger.
type Config struct {
	Algorithm   Algorithm
	CacheWeight float64
	DBWeight    float64
}

// DefaultConfig returns the default merge configuration.
func DefaultConfig() Config {
	return Config{
		Algorithm:   AlgorithmWeighted,
		CacheWeight: DefaultCacheWeight,
		DBWeight:    DefaultDBWeight,
	}
}

// Merger combines two result lists according to its configured algorithm.
type Merger struct {
	algorithm   Algorithm
	cacheWeight float64
	dbWeight    float64
}

// New creates a Merger. An empty algorithm means weighted; zero weights take
// the defaults. Unknown algorithms and negative weights are configuration
// errors.
func New(cfg Config) (*Merger, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmWeighted
	}
	switch cfg.Algorithm {
	case AlgorithmUnion, AlgorithmIntersection, AlgorithmWeighted:
	default:
		return nil, fmt.Errorf("%w: unknown merge algorithm %q", search.ErrInvalidConfig, cfg.Algorithm)
	}

	if cfg.CacheWeight == 0 && cfg.DBWeight == 0 {
		cfg.CacheWeight = DefaultCacheWeight
		cfg.DBWeight = DefaultDBWeight
	}
	if cfg.CacheWeight < 0 || cfg.DBWeight < 0 {
		return nil, fmt.Errorf("%w: merge weights must be non-negative (cache %v, db %v)",
			search.ErrInvalidConfig, cfg.CacheWeight, cfg.DBWeight)
	}

	return &Merger{
		algorithm:   cfg.Algorithm,
		cacheWeight: cfg.CacheWeight,
		dbWeight:    cfg.DBWeight,
	}, nil
}

// Algorithm returns the configured algorithm.
func (m *Merger) Algorithm() Algorithm {
	return m.algorithm
}

// Merge combines cache and database results. Every id appears at most once
// in the output. Input slices and their results are never mutated; the
// weighted algorithm clones before annotating.
func (m *Merger) Merge(cacheResults, dbResults []*search.SearchResult) []*search.SearchResult {
	switch m.algorithm {
	case AlgorithmUnion:
		return m.union(cacheResults, dbResults)
	case AlgorithmIntersection:
		return m.intersection(cacheResults, dbResults)
	default:
		return m.weighted(cacheResults, dbResults)
	}
}

// union keeps all unique ids, cache instances winning duplicates, ordered by
// relevance descending. The sort is stable so ties keep cache-first order.
func (*Merger) union(cacheResults, dbResults []*search.SearchResult) []*search.SearchResult {
	seen := make(map[string]struct{}, len(cacheResults)+len(dbResults))
	out := make([]*search.SearchResult, 0, len(cacheResults)+len(dbResults))

	for _, r := range cacheResults {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	for _, r := range dbResults {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}

	sortByScore(out)
	return out
}

// intersection keeps ids present in both lists, preferring the instance with
// the higher relevance score. Equal scores keep the cache instance.
func (*Merger) intersection(cacheResults, dbResults []*search.SearchResult) []*search.SearchResult {
	dbByID := make(map[string]*search.SearchResult, len(dbResults))
	for _, r := range dbResults {
		if _, ok := dbByID[r.ID]; !ok {
			dbByID[r.ID] = r
		}
	}

	seen := make(map[string]struct{}, len(cacheResults))
	out := make([]*search.SearchResult, 0, len(cacheResults))
	for _, c := range cacheResults {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}

		d, ok := dbByID[c.ID]
		if !ok {
			continue
		}
		if d.RelevanceScore > c.RelevanceScore {
			out = append(out, d)
		} else {
			out = append(out, c)
		}
	}

	sortByScore(out)
	return out
}

// weighted recomputes scores: a cache-only id scores round(score x cache
// weight), a database-only id round(score x db weight), and an id present in
// both sums the two rounded terms. Results are cloned and annotated with
// their source and the original scores.
func (m *Merger) weighted(cacheResults, dbResults []*search.SearchResult) []*search.SearchResult {
	type entry struct {
		cache *search.SearchResult
		db    *search.SearchResult
	}

	order := make([]string, 0, len(cacheResults)+len(dbResults))
	byID := make(map[string]*entry, len(cacheResults)+len(dbResults))

	for _, r := range cacheResults {
		if _, ok := byID[r.ID]; ok {
			continue
		}
		byID[r.ID] = &entry{cache: r}
		order = append(order, r.ID)
	}
	for _, r := range dbResults {
		if e, ok := byID[r.ID]; ok {
			if e.db == nil {
				e.db = r
			}
			continue
		}
		byID[r.ID] = &entry{db: r}
		order = append(order, r.ID)
	}

	out := make([]*search.SearchResult, 0, len(order))
	for _, id := range order {
		e := byID[id]

		var merged *search.SearchResult
		var combined int
		switch {
		case e.cache != nil && e.db != nil:
			combined = weigh(e.cache.RelevanceScore, m.cacheWeight) + weigh(e.db.RelevanceScore, m.dbWeight)
			merged = e.cache.Clone()
			merged.SetMetadata(metaSource, sourceHybrid)
			merged.SetMetadata(metaCacheScore, e.cache.RelevanceScore)
			merged.SetMetadata(metaDBScore, e.db.RelevanceScore)

		case e.cache != nil:
			combined = weigh(e.cache.RelevanceScore, m.cacheWeight)
			merged = e.cache.Clone()
			merged.SetMetadata(metaSource, sourceCache)
			merged.SetMetadata(metaOriginalScore, e.cache.RelevanceScore)

		default:
			combined = weigh(e.db.RelevanceScore, m.dbWeight)
			merged = e.db.Clone()
			merged.SetMetadata(metaSource, sourceDatabase)
			merged.SetMetadata(metaOriginalScore, e.db.RelevanceScore)
		}

		merged.SetRelevanceScore(combined)
		merged.SetMetadata(metaCombinedScore, merged.RelevanceScore)
		out = append(out, merged)
	}

	sortByScore(out)
	return out
}

// weigh rounds one weighted term half away from zero.
func weigh(score int, weight float64) int {
	return int(math.Round(float64(score) * weight))
}

// sortByScore orders by relevance descending, stable so ties keep input
// order.
func sortByScore(results []*search.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}
