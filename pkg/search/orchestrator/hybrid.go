// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/telemetry"
)

// hybridSearch fans out the cache and database legs concurrently and joins
// both outcomes. Legs never cancel each other; only the request context and
// its timeout abort them. Partial results observed after expiry are
// discarded in favor of the timeout error.
func (o *Orchestrator) hybridSearch(ctx context.Context, query string, opts *search.SearchOptions, decision search.StrategyDecision, start time.Time) (*search.Response, string, error) {
	o.counters.hybrid()

	var (
		cacheResults, dbResults []*search.SearchResult
		cacheErr, dbErr         error
	)

	// A plain Group, not WithContext: a failed leg must not cancel the
	// surviving one.
	var g errgroup.Group
	g.Go(func() error {
		cacheResults, cacheErr = o.scanCache(ctx, query, opts)
		return nil
	})
	g.Go(func() error {
		dbResults, dbErr = o.searchDatabase(ctx, query, opts)
		return nil
	})
	_ = g.Wait()

	if cacheErr != nil {
		o.noteBackendError(search.StrategyCache, cacheErr)
	}
	if dbErr != nil {
		o.noteBackendError(search.StrategyDatabase, dbErr)
	}

	if terr := timeoutError(ctx); terr != nil {
		return nil, "", terr
	}

	switch {
	case cacheErr == nil && dbErr == nil:
		merged := o.merger.Merge(cacheResults, dbResults)
		decision.Reason = fmt.Sprintf("merged %d cache and %d database results",
			len(cacheResults), len(dbResults))
		resp := o.newResponse(query, merged, decision, search.StrategyHybrid, nil, start)
		resp.Performance.CacheHit = true
		return resp, telemetry.OutcomeSuccess, nil

	case cacheErr == nil:
		decision = search.StrategyDecision{
			Primary:  search.StrategyCache,
			Fallback: search.StrategyDatabase,
			Reason:   "database failed",
		}
		errs := []string{fmt.Sprintf("database: %v", dbErr)}
		return o.newResponse(query, cacheResults, decision, search.StrategyCache, errs, start), telemetry.OutcomeFallback, nil

	case dbErr == nil:
		decision = search.StrategyDecision{
			Primary:  search.StrategyDatabase,
			Fallback: search.StrategyCache,
			Reason:   "cache failed",
		}
		errs := []string{fmt.Sprintf("cache: %v", cacheErr)}
		return o.newResponse(query, dbResults, decision, search.StrategyDatabase, errs, start), telemetry.OutcomeFallback, nil

	default:
		return nil, "", fmt.Errorf("%w: cache: %w; database: %w",
			search.ErrHybridSearchFailure, cacheErr, dbErr)
	}
}
