// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/search/breaker"
)

// Report aggregates backend health and breaker state for the /health
// endpoint.
type Report struct {
	Status    search.BackendStatus            `json:"status"`
	Timestamp time.Time                       `json:"timestamp"`
	Backends  map[string]*search.HealthStatus `json:"backends"`
	Breakers  map[string]breaker.Snapshot     `json:"breakers"`
}

// Health reports the façade's aggregate health. The database drives the
// verdict; a struggling cache degrades it but never fails it.
func (o *Orchestrator) Health(ctx context.Context) *Report {
	backends := map[string]*search.HealthStatus{
		o.db.Name(): o.health.Check(ctx, o.db),
	}
	breakers := map[string]breaker.Snapshot{
		o.db.Name(): o.dbBreaker.GetSnapshot(),
	}
	if o.cache != nil {
		backends[o.cache.Name()] = o.health.Check(ctx, o.cache)
		breakers[o.cache.Name()] = o.cacheBreaker.GetSnapshot()
	}

	status := backends[o.db.Name()].Status
	if status == search.StatusHealthy && o.cache != nil &&
		backends[o.cache.Name()].Status != search.StatusHealthy {
		status = search.StatusDegraded
	}

	o.publishBreakerState()

	return &Report{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Backends:  backends,
		Breakers:  breakers,
	}
}

// Stats is a point-in-time snapshot of the orchestrator's lifetime counters.
type Stats struct {
	TotalSearches  int64            `json:"total_searches"`
	CacheHits      int64            `json:"cache_hits"`
	HybridSearches int64            `json:"hybrid_searches"`
	BackendErrors  map[string]int64 `json:"backend_errors,omitempty"`
}

// Stats snapshots the lifetime counters.
func (o *Orchestrator) Stats() Stats {
	return o.counters.snapshot()
}

// HasGovernance reports whether SecureSearch is available.
func (o *Orchestrator) HasGovernance() bool {
	return o.governance != nil
}

// ClearCache removes cached entries matching pattern; an empty pattern
// clears the provider's whole namespace. A nil cache is a no-op.
func (o *Orchestrator) ClearCache(ctx context.Context, pattern string) error {
	if o.cache == nil {
		return nil
	}
	if err := o.cache.Clear(ctx, pattern); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// Close drains in-flight write-through goroutines, bounded by ctx, then
// disconnects both backends.
func (o *Orchestrator) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.asyncWrites.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warnf("Closing with cache write-through still in flight: %v", ctx.Err())
	}

	var errs []error
	if o.cache != nil {
		if err := o.cache.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnecting cache: %w", err))
		}
	}
	if err := o.db.Disconnect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("disconnecting database: %w", err))
	}
	return errors.Join(errs...)
}

// counters hold the orchestrator's lifetime totals, shared across requests.
type counters struct {
	mu             sync.Mutex
	totalSearches  int64
	cacheHits      int64
	hybridSearches int64
	backendErrors  map[string]int64
}

func (c *counters) search() {
	c.mu.Lock()
	c.totalSearches++
	c.mu.Unlock()
}

func (c *counters) cacheHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

func (c *counters) hybrid() {
	c.mu.Lock()
	c.hybridSearches++
	c.mu.Unlock()
}

func (c *counters) backendError(name string) {
	c.mu.Lock()
	if c.backendErrors == nil {
		c.backendErrors = make(map[string]int64)
	}
	c.backendErrors[name]++
	c.mu.Unlock()
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	errs := make(map[string]int64, len(c.backendErrors))
	for k, v := range c.backendErrors {
		errs[k] = v
	}
	return Stats{
		TotalSearches:  c.totalSearches,
		CacheHits:      c.cacheHits,
		HybridSearches: c.hybridSearches,
		BackendErrors:  errs,
	}
}
