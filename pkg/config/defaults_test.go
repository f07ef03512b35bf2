// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Values(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, defaultHost, cfg.Host)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, int32(defaultDBMinConns), cfg.Database.MinConns)
	assert.Equal(t, int32(defaultDBMaxConns), cfg.Database.MaxConns)
	assert.Equal(t, 300*time.Second, cfg.Cache.DefaultTTL.Std())
	assert.Equal(t, "search", cfg.Cache.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Search.HealthCacheTTL.Std())
	assert.Equal(t, time.Second, cfg.Search.SlowQueryThreshold.Std())
	assert.False(t, cfg.Search.HybridSearch.Enabled)
	assert.Equal(t, 0.7, cfg.Search.HybridSearch.CacheWeight)
	assert.Equal(t, 0.3, cfg.Search.HybridSearch.DBWeight)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 3, cfg.Breaker.SuccessThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breaker.RecoveryTimeout.Std())
	assert.Equal(t, defaultAuditLogSize, cfg.Governance.AuditLogSize)
	assert.Equal(t, defaultTokenizerSize, cfg.Governance.TokenizerSize)
	assert.True(t, cfg.Governance.Active())
	assert.True(t, cfg.Telemetry.Active())
}

func TestEnsureDefaults_FillsZeroFields(t *testing.T) {
	t.Parallel()

	cfg := &Config{Port: 9090}
	cfg.EnsureDefaults()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, defaultHost, cfg.Host)
	assert.Equal(t, int32(defaultDBMaxConns), cfg.Database.MaxConns)
	require.NotNil(t, cfg.Cache.Enabled)
	assert.True(t, *cfg.Cache.Enabled)
}

func TestEnsureDefaults_PreservesExplicitDisable(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Cache:     CacheConfig{URL: "redis://localhost:6379", Enabled: boolPtr(false)},
		Telemetry: TelemetryConfig{Enabled: boolPtr(false)},
	}
	cfg.EnsureDefaults()

	assert.False(t, cfg.Cache.Active())
	assert.False(t, cfg.Telemetry.Active())
}

func TestEnsureDefaults_NilReceiver(t *testing.T) {
	t.Parallel()

	var cfg *Config
	assert.NotPanics(t, func() { cfg.EnsureDefaults() })
}
