// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks -source=backend.go Backend,CacheBackend

// Backend is the operational surface shared by every search provider. The
// orchestrator only talks to backends through this contract; concrete
// providers live under pkg/backends.
type Backend interface {
	// Connect establishes the provider's connection pool. Safe to call once;
	// providers return an error on reconnection attempts they cannot honor.
	Connect(ctx context.Context) error

	// Disconnect releases the provider's resources.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether the provider currently holds a usable pool.
	IsConnected() bool

	// Search runs the query. Providers honor limit, offset and ordering;
	// they may ignore filters they cannot translate (the orchestrator
	// re-filters post-hoc). Failures are typed errors, never sentinel
	// result values.
	Search(ctx context.Context, query string, opts *SearchOptions) ([]*SearchResult, error)

	// Health probes the provider and reports a point-in-time status.
	Health(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's stable identifier, used for breaker and
	// health-cache keys ("cache", "database").
	Name() string
}

// CacheBackend extends Backend with the key/value surface used for
// write-through caching of database results.
type CacheBackend interface {
	Backend

	// Get returns the results stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]*SearchResult, error)

	// Set stores results under key for ttl. A non-positive ttl falls back
	// to the provider's configured default.
	Set(ctx context.Context, key string, results []*SearchResult, ttl time.Duration) error

	// Delete removes a single key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all keys matching pattern within the provider's
	// namespace; an empty pattern clears the whole namespace.
	Clear(ctx context.Context, pattern string) error
}

// DatasetStat describes one dataset held by a database backend. Backends
// that partition documents into datasets expose the listing through their
// own surface; it is not part of the Backend contract.
type DatasetStat struct {
	Dataset string `json:"dataset"`
	Rows    int64  `json:"rows"`
}
