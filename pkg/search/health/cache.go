// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package health memoizes backend health probes so strategy selection can
// consult live health on every request without a probe per request.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
)

// Defaults applied by New when the arguments are zero.
const (
	DefaultTTL          = 30 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// entry is one memoized probe result.
type entry struct {
	status   *search.HealthStatus
	observed time.Time
}

// Cache memoizes Backend.Health results per backend name. Entries are served
// while fresh; expired entries trigger a probe. Concurrent probes for the
// same backend are collapsed into one via singleflight. A failed probe falls
// back to the last known status, or a synthetic unhealthy status when the
// backend has never answered.
type Cache struct {
	ttl          time.Duration
	probeTimeout time.Duration

	mu      sync.Mutex
	entries map[string]entry

	group singleflight.Group
}

// New creates a health cache. Non-positive arguments fall back to the
// defaults.
func New(ttl, probeTimeout time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Cache{
		ttl:          ttl,
		probeTimeout: probeTimeout,
		entries:      make(map[string]entry),
	}
}

// Check returns the current health status for the backend. It never returns
// nil: probe failures degrade to the last known status or a synthetic
// unhealthy one carrying the probe error.
func (c *Cache) Check(ctx context.Context, backend search.Backend) *search.HealthStatus {
	name := backend.Name()

	c.mu.Lock()
	if e, ok := c.entries[name]; ok && time.Since(e.observed) < c.ttl {
		c.mu.Unlock()
		return e.status
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(name, func() (any, error) {
		return c.probe(ctx, backend)
	})
	if err == nil {
		return v.(*search.HealthStatus)
	}

	// Probe failed. Serve the stale entry if one exists so a flapping probe
	// does not flip strategy selection on every request.
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if ok {
		logger.Debugf("Health probe for backend %s failed, serving last known status: %v", name, err)
		return e.status
	}

	logger.Debugf("Health probe for backend %s failed with no prior status: %v", name, err)
	return search.NewUnhealthyStatus(err.Error())
}

// probe runs one bounded health check and memoizes the result.
func (c *Cache) probe(ctx context.Context, backend search.Backend) (*search.HealthStatus, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	status, err := backend.Health(probeCtx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("backend %s returned no health status", backend.Name())
	}

	c.mu.Lock()
	c.entries[backend.Name()] = entry{status: status, observed: time.Now()}
	c.mu.Unlock()

	return status, nil
}

// Invalidate drops the memoized entry for a backend so the next Check
// probes again.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// Len reports how many backends currently have a memoized status.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
