// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"

	"dario.cat/mergo"
)

// Default constants for operational configuration.
const (
	// defaultHost and defaultPort fix the HTTP listen address.
	defaultHost = "0.0.0.0"
	defaultPort = 8080

	// defaultDBMinConns and defaultDBMaxConns bound the pgx pool.
	defaultDBMinConns = 20
	defaultDBMaxConns = 30

	// defaultDBConnectTimeout bounds one connection attempt.
	defaultDBConnectTimeout = 10 * time.Second

	// defaultCachePrefix namespaces this deployment's redis keys.
	defaultCachePrefix = "search"

	// defaultCacheTTL is the write-through entry lifetime.
	defaultCacheTTL = 300 * time.Second

	// defaultHealthCacheTTL is how long a backend health probe is memoized.
	defaultHealthCacheTTL = 30 * time.Second

	// defaultSlowQueryThreshold triggers the slow-query warning.
	defaultSlowQueryThreshold = 1000 * time.Millisecond

	// defaultHybridAlgorithm merges hybrid legs when none is configured.
	defaultHybridAlgorithm = "weighted"

	// defaultCacheWeight and defaultDBWeight weigh hybrid merge terms.
	defaultCacheWeight = 0.7
	defaultDBWeight    = 0.3

	// defaultBreakerFailureThreshold opens a breaker after this many
	// consecutive failures.
	defaultBreakerFailureThreshold = 5

	// defaultBreakerSuccessThreshold closes a half-open breaker after this
	// many successes.
	defaultBreakerSuccessThreshold = 3

	// defaultBreakerRecoveryTimeout is how long an open breaker waits
	// before admitting probes again.
	defaultBreakerRecoveryTimeout = 60 * time.Second

	// defaultAuditLogSize bounds the in-memory audit store.
	defaultAuditLogSize = 1000

	// defaultTokenizerSize bounds the tokenize mask's token table.
	defaultTokenizerSize = 10000
)

func boolPtr(b bool) *bool { return &b }

// DefaultConfig returns a fully populated Config with default values.
// This is the SINGLE SOURCE OF TRUTH for all configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Host: defaultHost,
		Port: defaultPort,
		Database: DatabaseConfig{
			MinConns:       defaultDBMinConns,
			MaxConns:       defaultDBMaxConns,
			ConnectTimeout: Duration(defaultDBConnectTimeout),
		},
		Cache: CacheConfig{
			Enabled:    boolPtr(true),
			Prefix:     defaultCachePrefix,
			DefaultTTL: Duration(defaultCacheTTL),
		},
		Search: SearchConfig{
			HealthCacheTTL:     Duration(defaultHealthCacheTTL),
			SlowQueryThreshold: Duration(defaultSlowQueryThreshold),
			LogQueries:         false,
			HybridSearch: HybridSearchConfig{
				Enabled:     false,
				Algorithm:   defaultHybridAlgorithm,
				CacheWeight: defaultCacheWeight,
				DBWeight:    defaultDBWeight,
			},
		},
		Breaker: BreakerConfig{
			FailureThreshold: defaultBreakerFailureThreshold,
			SuccessThreshold: defaultBreakerSuccessThreshold,
			RecoveryTimeout:  Duration(defaultBreakerRecoveryTimeout),
		},
		Governance: GovernanceConfig{
			Enabled:       boolPtr(true),
			AuditLogSize:  defaultAuditLogSize,
			TokenizerSize: defaultTokenizerSize,
		},
		Telemetry: TelemetryConfig{
			Enabled: boolPtr(true),
		},
	}
}

// EnsureDefaults fills zero-value fields with defaults while preserving any
// user-provided values.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	_ = mergo.Merge(c, DefaultConfig())
}
