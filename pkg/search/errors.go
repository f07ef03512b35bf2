// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package search

import "errors"

// Common domain errors used across the search subpackages. Domain errors are
// defined at the package root and checked with errors.Is().

var (
	// ErrBackendNotConnected indicates an operation ran against a backend
	// that has not been connected yet (or was disconnected).
	ErrBackendNotConnected = errors.New("backend not connected")

	// ErrConnectionFailed indicates a backend is unreachable. Wrapping
	// errors should name the backend and carry the transport error.
	ErrConnectionFailed = errors.New("backend connection failed")

	// ErrSearchTimeout indicates a search exceeded its per-call timeout.
	// The orchestrator enforces options.Timeout and surfaces this directly.
	ErrSearchTimeout = errors.New("search timed out")

	// ErrCircuitOpen indicates a call was short-circuited by an open
	// circuit breaker without touching the backend.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrSearchFailed indicates a generic backend search failure. Wrapping
	// errors should carry the backend error.
	ErrSearchFailed = errors.New("search failed")

	// ErrCacheMiss indicates a cache key was absent. Internal control flow;
	// never surfaced to callers.
	ErrCacheMiss = errors.New("cache miss")

	// ErrHybridSearchFailure indicates both concurrent hybrid legs failed.
	// The wrapping error carries both causes.
	ErrHybridSearchFailure = errors.New("hybrid search failed on both backends")

	// ErrAccessDenied indicates the governance layer refused the request.
	// Never swallowed: the request ends with an audit entry and this error.
	ErrAccessDenied = errors.New("access denied")

	// ErrGovernanceNotConfigured indicates SecureSearch was called on an
	// orchestrator built without a governance engine.
	ErrGovernanceNotConfigured = errors.New("governance not configured")

	// ErrInvalidPolicy indicates a governance policy failed to load or
	// references an unknown mask kind.
	ErrInvalidPolicy = errors.New("invalid governance policy")

	// ErrInvalidConfig indicates invalid configuration was provided.
	// Wrapping errors should provide specific details about what is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrJobNotFound indicates an unknown seeding job id.
	ErrJobNotFound = errors.New("seeding job not found")
)
