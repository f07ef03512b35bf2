// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prismsearch/prism/pkg/governance"
	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/telemetry"
)

// writeThroughTimeout bounds one background cache write.
const writeThroughTimeout = 5 * time.Second

// maxLoggedQueryLen bounds query text in log lines.
const maxLoggedQueryLen = 50

// executeWithFallback runs the primary leg and, when options allow, the
// fallback leg. It returns the response, the telemetry outcome label, and an
// error only for timeouts and cancellation; backend failures degrade to a
// response carrying the error strings.
func (o *Orchestrator) executeWithFallback(ctx context.Context, query string, opts *search.SearchOptions, decision search.StrategyDecision, start time.Time) (*search.Response, string, error) {
	results, err := o.runLeg(ctx, decision.Primary, query, opts)
	if err == nil {
		if decision.Primary == search.StrategyDatabase {
			o.writeThrough(query, opts, results)
		}
		return o.newResponse(query, results, decision, decision.Primary, nil, start), telemetry.OutcomeSuccess, nil
	}

	o.noteBackendError(decision.Primary, err)
	if terr := timeoutError(ctx); terr != nil {
		return nil, "", terr
	}

	errs := []string{err.Error()}
	logger.Warnf("%s search failed, trying fallback: %v", decision.Primary, err)

	if !opts.FallbackEnabled {
		return o.newResponse(query, nil, decision, decision.Primary, errs, start), telemetry.OutcomeFailure, nil
	}

	fbResults, fbErr := o.runLeg(ctx, decision.Fallback, query, opts)
	if fbErr == nil {
		return o.newResponse(query, fbResults, decision, decision.Fallback, errs, start), telemetry.OutcomeFallback, nil
	}

	o.noteBackendError(decision.Fallback, fbErr)
	if terr := timeoutError(ctx); terr != nil {
		return nil, "", terr
	}

	errs = append(errs, fbErr.Error())
	logger.Errorf("All search paths failed (primary %s, fallback %s): %v; %v",
		decision.Primary, decision.Fallback, err, fbErr)
	return o.newResponse(query, nil, decision, decision.Fallback, errs, start), telemetry.OutcomeFailure, nil
}

// runLeg dispatches one strategy leg to its backend.
func (o *Orchestrator) runLeg(ctx context.Context, kind search.StrategyKind, query string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
	if kind == search.StrategyCache {
		return o.searchCache(ctx, query, opts)
	}
	return o.searchDatabase(ctx, query, opts)
}

// searchDatabase runs a database search through its breaker.
func (o *Orchestrator) searchDatabase(ctx context.Context, query string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
	var results []*search.SearchResult
	err := o.dbBreaker.Call(ctx, func(ctx context.Context) error {
		r, err := o.db.Search(ctx, query, opts)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	return results, err
}

// searchCache serves the cache leg: an exact-key lookup first, then the
// ranked search over the cached corpus. A key miss is a healthy backend
// answer, not a failure, so it does not count against the breaker.
func (o *Orchestrator) searchCache(ctx context.Context, query string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
	if o.cache == nil {
		return nil, fmt.Errorf("%w: no cache backend configured", search.ErrBackendNotConnected)
	}

	key := cacheKey(query, opts)
	var hit []*search.SearchResult
	err := o.cacheBreaker.Call(ctx, func(ctx context.Context) error {
		results, err := o.cache.Get(ctx, key)
		if err != nil {
			if errors.Is(err, search.ErrCacheMiss) {
				return nil
			}
			return err
		}
		hit = results
		return nil
	})
	if err != nil {
		return nil, err
	}
	if hit != nil {
		logger.Debugf("Cache hit for key %s", key)
		return hit, nil
	}

	return o.scanCache(ctx, query, opts)
}

// scanCache runs the cache backend's ranked search through the breaker.
// Hybrid legs call it directly: a merged run must rank the cached corpus,
// not replay an exact-key entry written by an earlier database search.
func (o *Orchestrator) scanCache(ctx context.Context, query string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
	var results []*search.SearchResult
	err := o.cacheBreaker.Call(ctx, func(ctx context.Context) error {
		r, err := o.cache.Search(ctx, query, opts)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	return results, err
}

// writeThrough stores database results under the canonical key without
// blocking the request. The goroutine runs on a detached context: the
// request may complete or time out before the write lands.
func (o *Orchestrator) writeThrough(query string, opts *search.SearchOptions, results []*search.SearchResult) {
	if o.cache == nil || !opts.CacheEnabled || len(results) == 0 {
		return
	}

	key := cacheKey(query, opts)
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = o.cfg.Cache.DefaultTTL.Std()
	}

	o.asyncWrites.Add(1)
	go func() {
		defer o.asyncWrites.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeThroughTimeout)
		defer cancel()
		if err := o.cache.Set(ctx, key, results, ttl); err != nil {
			logger.Warnf("Failed to cache search results under %s: %v", key, err)
		}
	}()
}

// newResponse assembles a Response. The winning leg drives the performance
// strategy; CacheHit follows the cache winning. A nil result slice becomes
// an empty one so the HTTP layer always renders a results array.
func (o *Orchestrator) newResponse(query string, results []*search.SearchResult, decision search.StrategyDecision, won search.StrategyKind, errs []string, start time.Time) *search.Response {
	if results == nil {
		results = []*search.SearchResult{}
	}
	return &search.Response{
		Results:  results,
		Query:    query,
		Total:    len(results),
		Strategy: decision,
		Performance: search.Performance{
			SearchTimeMs: time.Since(start).Milliseconds(),
			ResultCount:  len(results),
			Strategy:     won,
			CacheHit:     won == search.StrategyCache,
			Errors:       errs,
		},
	}
}

// noteBackendError books a failed leg against its backend and drops the
// memoized health so the next strategy selection re-probes instead of
// trusting a status observed before this failure.
func (o *Orchestrator) noteBackendError(kind search.StrategyKind, err error) {
	name := o.backendName(kind)
	o.counters.backendError(name)
	o.metrics.RecordBackendError(name)
	o.health.Invalidate(name)
	logger.Debugf("Backend %s error: %v", name, err)
}

// backendName resolves the backend behind a strategy leg.
func (o *Orchestrator) backendName(kind search.StrategyKind) string {
	if kind == search.StrategyCache && o.cache != nil {
		return o.cache.Name()
	}
	return o.db.Name()
}

// timeoutError maps context expiry to the timeout sentinel so every path
// surfaces the same error kind. A live context returns nil.
func timeoutError(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", search.ErrSearchTimeout, err)
	default:
		return err
	}
}

// loggableQuery redacts sensitive patterns and truncates the query for log
// output. Queries are never rejected for containing sensitive data.
func loggableQuery(q string) string {
	q = governance.Redact(q)
	if len(q) > maxLoggedQueryLen {
		q = q[:maxLoggedQueryLen] + "..."
	}
	return q
}
