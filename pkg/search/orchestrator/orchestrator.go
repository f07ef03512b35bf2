// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator routes search requests across the database and cache
// backends. It selects a strategy from memoized health probes and breaker
// state, runs the chosen backend behind its circuit breaker, falls back when
// the primary fails, merges hybrid results, and applies governance for
// secure searches.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prismsearch/prism/pkg/config"
	"github.com/prismsearch/prism/pkg/governance"
	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/search/breaker"
	"github.com/prismsearch/prism/pkg/search/health"
	"github.com/prismsearch/prism/pkg/search/merge"
	"github.com/prismsearch/prism/pkg/search/strategy"
	"github.com/prismsearch/prism/pkg/telemetry"
)

// Orchestrator is the façade's core. It owns one circuit breaker per
// backend, a shared health cache, and the merge engine; governance and
// telemetry are optional. All methods are safe for concurrent use.
type Orchestrator struct {
	cfg *config.Config

	db    search.Backend
	cache search.CacheBackend

	dbBreaker    *breaker.CircuitBreaker
	cacheBreaker *breaker.CircuitBreaker

	health *health.Cache
	merger *merge.Merger

	governance *governance.Engine
	metrics    *telemetry.Metrics

	counters counters

	// asyncWrites tracks in-flight write-through goroutines so Close can
	// drain them before disconnecting the cache.
	asyncWrites sync.WaitGroup
}

// Option customizes an Orchestrator beyond the required backends.
type Option func(*Orchestrator)

// WithGovernance enables SecureSearch through the given engine.
func WithGovernance(engine *governance.Engine) Option {
	return func(o *Orchestrator) { o.governance = engine }
}

// WithMetrics records search telemetry on the given instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New assembles an orchestrator over a required database backend and an
// optional cache backend; a nil cache disables the cache and hybrid
// strategies. Backends are connected by the caller: health checks report
// connection state, they do not repair it.
func New(cfg *config.Config, db search.Backend, cache search.CacheBackend, opts ...Option) (*Orchestrator, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database backend is required", search.ErrInvalidConfig)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	} else {
		cfg.EnsureDefaults()
	}

	merger, err := merge.New(merge.Config{
		Algorithm:   merge.Algorithm(cfg.Search.HybridSearch.Algorithm),
		CacheWeight: cfg.Search.HybridSearch.CacheWeight,
		DBWeight:    cfg.Search.HybridSearch.DBWeight,
	})
	if err != nil {
		return nil, err
	}

	bcfg := breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout.Std(),
	}

	o := &Orchestrator{
		cfg:       cfg,
		db:        db,
		cache:     cache,
		dbBreaker: breaker.New(db.Name(), bcfg),
		health:    health.New(cfg.Search.HealthCacheTTL.Std(), 0),
		merger:    merger,
		counters:  counters{backendErrors: make(map[string]int64)},
	}
	if cache != nil {
		o.cacheBreaker = breaker.New(cache.Name(), bcfg)
	}

	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Search runs one query through the selected strategy with breaker-guarded
// fallback. Backend failures are recovered: when every path fails, the
// response carries an empty result set and the failure strings in
// Performance.Errors. Only timeouts, cancellation, and total hybrid failure
// surface as errors.
func (o *Orchestrator) Search(ctx context.Context, query string, opts *search.SearchOptions) (*search.Response, error) {
	start := time.Now()

	if opts == nil {
		opts = search.DefaultOptions()
	} else {
		opts = opts.Clone()
		opts.ApplyDefaults()
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	o.counters.search()

	decision := o.decide(ctx)
	if o.cfg.Search.LogQueries {
		logger.Infof("Using %s search strategy: %s (query %q)",
			decision.Primary, decision.Reason, loggableQuery(query))
	}

	var (
		resp    *search.Response
		outcome string
		err     error
	)
	if decision.Primary == search.StrategyHybrid {
		resp, outcome, err = o.hybridSearch(ctx, query, opts, decision, start)
	} else {
		resp, outcome, err = o.executeWithFallback(ctx, query, opts, decision, start)
	}
	if err != nil {
		o.metrics.RecordSearch(string(decision.Primary), telemetry.OutcomeFailure, time.Since(start).Seconds())
		o.publishBreakerState()
		return nil, err
	}

	o.finish(query, resp, outcome, time.Since(start))
	return resp, nil
}

// SecureSearch runs a governed search: authorize the caller, inject
// row-security filter hints, search, re-filter and mask the results, and
// audit the call. An audit entry is written on every path, success or
// failure; access denials are audited and returned, never swallowed.
func (o *Orchestrator) SecureSearch(ctx context.Context, query string, sctx *search.SecurityContext, opts *search.SearchOptions) (*search.SecureResponse, error) {
	if o.governance == nil {
		return nil, search.ErrGovernanceNotConfigured
	}

	start := time.Now()
	dataset := o.governance.Dataset(opts)
	if sctx != nil {
		sctx.EnsureSession()
	}

	// The audit write must land even when the request context has expired.
	auditCtx := context.WithoutCancel(ctx)

	fail := func(err error) (*search.SecureResponse, error) {
		auditID := o.governance.AuditSearch(auditCtx, query, sctx, governance.AuditOutcome{
			Dataset:      dataset,
			SearchTimeMs: time.Since(start).Milliseconds(),
			Success:      false,
			Error:        err.Error(),
		})
		logger.Warnf("Secure search failed (audit %s): %v", auditID, err)
		return nil, err
	}

	if err := o.governance.Authorize(sctx); err != nil {
		return fail(err)
	}

	secured := o.governance.ApplyRowSecurity(opts, dataset, sctx)

	resp, err := o.Search(ctx, query, secured)
	if err != nil {
		return fail(err)
	}

	filtered := o.governance.FilterResults(resp.Results, dataset, sctx)
	masked, maskedFields, err := o.governance.MaskResults(filtered, dataset, sctx)
	if err != nil {
		return fail(err)
	}

	resp.Results = masked
	resp.Total = len(masked)
	resp.Performance.ResultCount = len(masked)

	auditID := o.governance.AuditSearch(auditCtx, query, sctx, governance.AuditOutcome{
		Dataset:      dataset,
		ResultCount:  len(masked),
		SearchTimeMs: resp.Performance.SearchTimeMs,
		Success:      true,
		MaskedFields: maskedFields,
	})

	return &search.SecureResponse{
		Response:     *resp,
		MaskedFields: maskedFields,
		AuditID:      auditID,
	}, nil
}

// decide assembles the selector inputs from breaker and memoized health
// state. The health probe is skipped while the cache breaker is open; the
// selector rejects the cache either way.
func (o *Orchestrator) decide(ctx context.Context) search.StrategyDecision {
	in := strategy.Inputs{
		HasCache:      o.cache != nil,
		HybridEnabled: o.cfg.Search.HybridSearch.Enabled,
	}
	if o.cache != nil {
		in.CacheBreakerOpen = o.cacheBreaker.IsOpen()
		if !in.CacheBreakerOpen {
			in.CacheHealth = o.health.Check(ctx, o.cache)
		}
	}
	return strategy.Select(in)
}

// finish books per-request telemetry and emits the slow-query warning and
// the optional per-query log line.
func (o *Orchestrator) finish(query string, resp *search.Response, outcome string, elapsed time.Duration) {
	if resp.Performance.CacheHit {
		o.counters.cacheHit()
		o.metrics.RecordCacheHit()
	}
	o.metrics.RecordSearch(string(resp.Performance.Strategy), outcome, elapsed.Seconds())
	o.publishBreakerState()

	if threshold := o.cfg.Search.SlowQueryThreshold.Std(); threshold > 0 && elapsed > threshold {
		logger.Warnf("Slow search: %dms for query %q via %s (threshold %s)",
			resp.Performance.SearchTimeMs, loggableQuery(query), resp.Performance.Strategy, threshold)
	}
	if o.cfg.Search.LogQueries {
		logger.Infof("Search %q returned %d results in %dms via %s",
			loggableQuery(query), resp.Performance.ResultCount,
			resp.Performance.SearchTimeMs, resp.Performance.Strategy)
	}
}

// publishBreakerState refreshes the breaker state gauges.
func (o *Orchestrator) publishBreakerState() {
	o.metrics.SetBreakerState(o.db.Name(), string(o.dbBreaker.GetState()))
	if o.cacheBreaker != nil {
		o.metrics.SetBreakerState(o.cache.Name(), string(o.cacheBreaker.GetState()))
	}
}
