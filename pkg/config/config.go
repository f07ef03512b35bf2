// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides the configuration model for the prism search
// facade.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prismsearch/prism/pkg/search"
)

// Duration is a wrapper around time.Duration that marshals/unmarshals as a
// duration string. This ensures duration values are serialized as "30s",
// "1m", etc. instead of nanosecond integers.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration model for prismd.
type Config struct {
	// Host and Port fix the HTTP listen address.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	Database   DatabaseConfig   `json:"database,omitempty" yaml:"database,omitempty"`
	Cache      CacheConfig      `json:"cache,omitempty" yaml:"cache,omitempty"`
	Search     SearchConfig     `json:"search,omitempty" yaml:"search,omitempty"`
	Breaker    BreakerConfig    `json:"breaker,omitempty" yaml:"breaker,omitempty"`
	Governance GovernanceConfig `json:"governance,omitempty" yaml:"governance,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// DatabaseConfig configures the primary PostgreSQL backend.
type DatabaseConfig struct {
	// URL is the connection string; the DATABASE_URL environment variable
	// overrides it.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	MinConns       int32    `json:"min_conns,omitempty" yaml:"min_conns,omitempty"`
	MaxConns       int32    `json:"max_conns,omitempty" yaml:"max_conns,omitempty"`
	ConnectTimeout Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
}

// CacheConfig configures the optional Redis cache backend.
type CacheConfig struct {
	// URL is the redis connection string; the REDIS_URL environment
	// variable overrides it. Empty means no cache backend.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Enabled may turn the cache off even when URL is set. Nil means
	// enabled.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Prefix namespaces this deployment's keys.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// DefaultTTL is the write-through entry lifetime when a search does not
	// override it.
	DefaultTTL Duration `json:"default_ttl,omitempty" yaml:"default_ttl,omitempty"`
}

// Active reports whether a cache backend should be constructed.
func (c *CacheConfig) Active() bool {
	if c == nil || c.URL == "" {
		return false
	}
	return c.Enabled == nil || *c.Enabled
}

// HybridSearchConfig tunes hybrid fan-out and merging.
type HybridSearchConfig struct {
	Enabled     bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Algorithm   string  `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	CacheWeight float64 `json:"cache_weight,omitempty" yaml:"cache_weight,omitempty"`
	DBWeight    float64 `json:"db_weight,omitempty" yaml:"db_weight,omitempty"`
}

// SearchConfig tunes the orchestrator.
type SearchConfig struct {
	// HealthCacheTTL bounds how long a backend health probe is memoized.
	HealthCacheTTL Duration `json:"health_cache_ttl,omitempty" yaml:"health_cache_ttl,omitempty"`

	// SlowQueryThreshold triggers a warning log for slower searches.
	SlowQueryThreshold Duration `json:"slow_query_threshold,omitempty" yaml:"slow_query_threshold,omitempty"`

	// LogQueries logs every query (redacted and truncated).
	LogQueries bool `json:"log_queries,omitempty" yaml:"log_queries,omitempty"`

	HybridSearch HybridSearchConfig `json:"hybrid_search,omitempty" yaml:"hybrid_search,omitempty"`
}

// BreakerConfig tunes the per-backend circuit breakers.
type BreakerConfig struct {
	FailureThreshold int      `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	SuccessThreshold int      `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	RecoveryTimeout  Duration `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty"`
}

// GovernanceConfig configures the governance layer.
type GovernanceConfig struct {
	// Enabled turns governed search off entirely. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// PolicyDir holds per-dataset policy files; the PRISM_POLICY_DIR
	// environment variable overrides it.
	PolicyDir string `json:"policy_dir,omitempty" yaml:"policy_dir,omitempty"`

	AuditLogSize  int `json:"audit_log_size,omitempty" yaml:"audit_log_size,omitempty"`
	TokenizerSize int `json:"tokenizer_size,omitempty" yaml:"tokenizer_size,omitempty"`
}

// Active reports whether the governance engine should be constructed.
func (g *GovernanceConfig) Active() bool {
	return g == nil || g.Enabled == nil || *g.Enabled
}

// TelemetryConfig configures Prometheus metrics.
type TelemetryConfig struct {
	// Enabled turns the /metrics endpoint and instruments off. Nil means
	// enabled.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// Active reports whether metrics should be registered.
func (t *TelemetryConfig) Active() bool {
	return t == nil || t.Enabled == nil || *t.Enabled
}

// ListenAddr renders the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads a YAML config file and fills unset fields with defaults. An
// empty path returns DefaultConfig().
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	// Validate and clean the path to prevent directory traversal attacks
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("path contains directory traversal elements: %s", path)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}

	cfg.EnsureDefaults()
	return &cfg, nil
}

// ApplyEnv overrides config fields from the environment: DATABASE_URL,
// REDIS_URL and PRISM_POLICY_DIR.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.URL = v
	}
	if v := os.Getenv("PRISM_POLICY_DIR"); v != "" {
		c.Governance.PolicyDir = v
	}
}

// Validate checks the configuration for inconsistencies. All failures wrap
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: configuration is nil", search.ErrInvalidConfig)
	}

	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Database.MinConns < 0 || c.Database.MaxConns < 0 {
		errors = append(errors, "database connection counts must not be negative")
	}
	if c.Database.MaxConns > 0 && c.Database.MinConns > c.Database.MaxConns {
		errors = append(errors, fmt.Sprintf("database min_conns %d exceeds max_conns %d",
			c.Database.MinConns, c.Database.MaxConns))
	}
	if c.Cache.DefaultTTL < 0 {
		errors = append(errors, "cache default_ttl must not be negative")
	}

	switch c.Search.HybridSearch.Algorithm {
	case "", "union", "intersection", "weighted":
	default:
		errors = append(errors, fmt.Sprintf("unknown hybrid algorithm %q", c.Search.HybridSearch.Algorithm))
	}
	if c.Search.HybridSearch.CacheWeight < 0 || c.Search.HybridSearch.DBWeight < 0 {
		errors = append(errors, "hybrid weights must not be negative")
	}

	if c.Breaker.FailureThreshold < 0 || c.Breaker.SuccessThreshold < 0 {
		errors = append(errors, "breaker thresholds must not be negative")
	}
	if c.Breaker.RecoveryTimeout < 0 {
		errors = append(errors, "breaker recovery_timeout must not be negative")
	}

	if c.Governance.AuditLogSize < 0 {
		errors = append(errors, "governance audit_log_size must not be negative")
	}
	if c.Governance.TokenizerSize < 0 {
		errors = append(errors, "governance tokenizer_size must not be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w:\n  - %s", search.ErrInvalidConfig, strings.Join(errors, "\n  - "))
	}
	return nil
}
