// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package search

// StrategyKind names an execution route for one search request.
type StrategyKind string

// Execution routes.
const (
	StrategyCache    StrategyKind = "cache"
	StrategyDatabase StrategyKind = "database"
	StrategyHybrid   StrategyKind = "hybrid"
)

// StrategyDecision is the selector's output: where to run first, where to
// retry, and a human-readable reason for operators.
type StrategyDecision struct {
	Primary  StrategyKind `json:"primary"`
	Fallback StrategyKind `json:"fallback"`
	Reason   string       `json:"reason"`
}

// Performance is the per-request telemetry attached to every response.
type Performance struct {
	SearchTimeMs int64        `json:"search_time_ms"`
	ResultCount  int          `json:"result_count"`
	Strategy     StrategyKind `json:"strategy"`

	// CacheHit is true iff the winning backend was the cache.
	CacheHit bool `json:"cache_hit"`

	// Errors collects backend failures that were recovered from (or, when
	// both paths failed, both failure strings). A populated Errors with an
	// empty result set is a valid partial-failure response, not an error.
	Errors []string `json:"errors,omitempty"`
}

// Response is the orchestrator's answer to a Search call.
type Response struct {
	Results     []*SearchResult  `json:"results"`
	Query       string           `json:"query"`
	Total       int              `json:"total"`
	Strategy    StrategyDecision `json:"strategy"`
	Performance Performance      `json:"performance"`
}

// SecureResponse is the answer to a SecureSearch call: a Response that has
// passed governance, plus masking and audit bookkeeping.
type SecureResponse struct {
	Response

	// MaskedFields lists the field names rewritten by column masking,
	// deduplicated, in first-seen order.
	MaskedFields []string `json:"masked_fields,omitempty"`

	// AuditID identifies the audit entry recorded for this call. Never
	// empty on a SecureResponse.
	AuditID string `json:"audit_id"`
}
