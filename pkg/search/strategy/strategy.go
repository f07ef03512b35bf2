// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package strategy decides which backend serves a search request.
package strategy

import (
	"fmt"

	"github.com/prismsearch/prism/pkg/search"
)

// MaxHealthyLatencyMs is the cache latency above which the cache is not
// considered healthy for primary selection.
const MaxHealthyLatencyMs = 1000

// Inputs carries everything Select needs. It is assembled by the
// orchestrator from the health cache and breaker state.
type Inputs struct {
	// HasCache is false when no cache backend is configured.
	HasCache bool

	// CacheBreakerOpen reports whether the cache breaker currently rejects
	// calls.
	CacheBreakerOpen bool

	// CacheHealth is the memoized cache health, nil when unknown.
	CacheHealth *search.HealthStatus

	// HybridEnabled upgrades a healthy cache to hybrid execution.
	HybridEnabled bool
}

// Select resolves the execution strategy for one request. It is a pure
// function of its inputs. Rules are evaluated in order:
//
//  1. no cache configured: database only
//  2. cache breaker open: database only
//  3. cache healthy: cache primary, database fallback (hybrid when enabled)
//  4. cache connected but not searchable: database primary, cache fallback
//  5. anything else: database only
func Select(in Inputs) search.StrategyDecision {
	if !in.HasCache {
		return search.StrategyDecision{
			Primary:  search.StrategyDatabase,
			Fallback: search.StrategyDatabase,
			Reason:   "no cache configured",
		}
	}

	if in.CacheBreakerOpen {
		return search.StrategyDecision{
			Primary:  search.StrategyDatabase,
			Fallback: search.StrategyDatabase,
			Reason:   "cache breaker open",
		}
	}

	if in.CacheHealth.Healthy(MaxHealthyLatencyMs) {
		if in.HybridEnabled {
			return search.StrategyDecision{
				Primary:  search.StrategyHybrid,
				Fallback: search.StrategyDatabase,
				Reason:   "hybrid search enabled",
			}
		}
		return search.StrategyDecision{
			Primary:  search.StrategyCache,
			Fallback: search.StrategyDatabase,
			Reason:   fmt.Sprintf("cache healthy (%dms)", in.CacheHealth.LatencyMs),
		}
	}

	if in.CacheHealth != nil && in.CacheHealth.IsConnected && !in.CacheHealth.IsSearchAvailable {
		return search.StrategyDecision{
			Primary:  search.StrategyDatabase,
			Fallback: search.StrategyCache,
			Reason:   "degraded cache",
		}
	}

	return search.StrategyDecision{
		Primary:  search.StrategyDatabase,
		Fallback: search.StrategyDatabase,
		Reason:   "cache unavailable",
	}
}
