// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package rediscache implements the cache backend over Redis. Cached result
// sets are stored as JSON under namespaced keys, and the provider doubles as
// a search backend by ranking cached documents in-process.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prismsearch/prism/pkg/search"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// keyNamespace prefixes every key this module writes.
const keyNamespace = "prism"

// scanBatchSize is the COUNT hint for SCAN and the DEL batch size.
const scanBatchSize = 100

// Provider implements search.CacheBackend over a Redis deployment.
type Provider struct {
	client    redis.UniversalClient
	keyPrefix string
	connected atomic.Bool
}

// storedResults is the serializable wrapper for one cached result set.
type storedResults struct {
	Results  []*search.SearchResult `json:"results"`
	Query    string                 `json:"query,omitempty"`
	CachedAt time.Time              `json:"cached_at"`
}

// New creates a Provider from a redis URL such as
// "redis://localhost:6379/0". The connection is established by Connect.
func New(redisURL, prefix string) (*Provider, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = DefaultDialTimeout
	opts.ReadTimeout = DefaultReadTimeout
	opts.WriteTimeout = DefaultWriteTimeout

	return NewWithClient(redis.NewClient(opts), prefix), nil
}

// NewWithClient creates a Provider with a pre-configured client.
// This is useful for testing with miniredis.
func NewWithClient(client redis.UniversalClient, prefix string) *Provider {
	if prefix == "" {
		prefix = "search"
	}
	return &Provider{
		client:    client,
		keyPrefix: fmt.Sprintf("%s:%s:", keyNamespace, prefix),
	}
}

// Name implements search.Backend. The orchestrator keys breaker and health
// state by this value.
func (*Provider) Name() string { return "cache" }

// Connect verifies the server is reachable.
func (p *Provider) Connect(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", search.ErrConnectionFailed, p.Name(), err)
	}
	p.connected.Store(true)
	return nil
}

// Disconnect closes the client.
func (p *Provider) Disconnect(_ context.Context) error {
	p.connected.Store(false)
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

// IsConnected implements search.Backend.
func (p *Provider) IsConnected() bool {
	return p.connected.Load()
}

func (p *Provider) key(k string) string {
	return p.keyPrefix + k
}

func (p *Provider) requireConnected() error {
	if !p.connected.Load() {
		return fmt.Errorf("%w: %s", search.ErrBackendNotConnected, p.Name())
	}
	return nil
}

// Get returns the cached result set for a key, or ErrCacheMiss.
func (p *Provider) Get(ctx context.Context, key string) ([]*search.SearchResult, error) {
	if err := p.requireConnected(); err != nil {
		return nil, err
	}

	data, err := p.client.Get(ctx, p.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", search.ErrCacheMiss, key)
		}
		return nil, fmt.Errorf("failed to get cached results: %w", err)
	}

	var stored storedResults
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached results: %w", err)
	}
	return stored.Results, nil
}

// Set stores a result set under a key with the given TTL. Non-positive TTL
// stores without expiry.
func (p *Provider) Set(ctx context.Context, key string, results []*search.SearchResult, ttl time.Duration) error {
	if err := p.requireConnected(); err != nil {
		return err
	}

	data, err := json.Marshal(storedResults{
		Results:  results,
		CachedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := p.client.Set(ctx, p.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached results: %w", err)
	}
	return nil
}

// Delete removes one cached key.
func (p *Provider) Delete(ctx context.Context, key string) error {
	if err := p.requireConnected(); err != nil {
		return err
	}
	if err := p.client.Del(ctx, p.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached results: %w", err)
	}
	return nil
}

// Clear removes every key matching pattern under this provider's prefix.
// An empty pattern clears the whole prefix.
func (p *Provider) Clear(ctx context.Context, pattern string) error {
	if err := p.requireConnected(); err != nil {
		return err
	}

	if pattern == "" {
		pattern = "*"
	}
	keys, err := p.scanKeys(ctx, p.key(pattern))
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += scanBatchSize {
		end := min(start+scanBatchSize, len(keys))
		if err := p.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
	}
	return nil
}

// Search ranks the cached documents against the query in-process. This is
// the surface the strategy selector uses for cache-primary and hybrid
// execution.
func (p *Provider) Search(ctx context.Context, query string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
	if err := p.requireConnected(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = search.DefaultOptions()
	}

	keys, err := p.scanKeys(ctx, p.key("*"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", search.ErrSearchFailed, err)
	}

	best := make(map[string]*search.SearchResult)
	order := make([]string, 0, len(keys))
	for _, key := range keys {
		data, err := p.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between SCAN and GET
			}
			return nil, fmt.Errorf("%w: %w", search.ErrSearchFailed, err)
		}

		var stored storedResults
		if err := json.Unmarshal(data, &stored); err != nil {
			continue // foreign or corrupt entry, not ours to fail on
		}

		for _, r := range stored.Results {
			score, matched := scoreAgainst(query, r)
			if !matched || !matchesFilters(r, opts.Filters) {
				continue
			}
			ranked := r.Clone()
			ranked.SetRelevanceScore(score)
			if cur, ok := best[r.ID]; !ok {
				best[r.ID] = ranked
				order = append(order, r.ID)
			} else if ranked.RelevanceScore > cur.RelevanceScore {
				best[r.ID] = ranked
			}
		}
	}

	results := make([]*search.SearchResult, 0, len(best))
	for _, id := range order {
		results = append(results, best[id])
	}
	sortResults(results, opts)
	return paginate(results, opts), nil
}

// Health reports connectivity, latency, key count and memory usage.
func (p *Provider) Health(ctx context.Context) (*search.HealthStatus, error) {
	start := time.Now()
	if err := p.client.Ping(ctx).Err(); err != nil {
		return search.NewUnhealthyStatus(fmt.Sprintf("ping failed: %v", err)), nil
	}
	latency := time.Since(start).Milliseconds()

	status := &search.HealthStatus{
		IsConnected:       true,
		IsSearchAvailable: true,
		LatencyMs:         latency,
		MemoryUsage:       "unknown",
		Status:            search.StatusHealthy,
	}

	if count, err := p.client.DBSize(ctx).Result(); err == nil {
		status.KeyCount = count
	} else {
		status.Errors = append(status.Errors, fmt.Sprintf("dbsize failed: %v", err))
		status.Status = search.StatusDegraded
	}

	if info, err := p.client.Info(ctx, "memory").Result(); err == nil {
		if usage := parseMemoryUsage(info); usage != "" {
			status.MemoryUsage = usage
		}
	}

	return status, nil
}

func (p *Provider) scanKeys(ctx context.Context, match string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := p.client.Scan(ctx, cursor, match, scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// parseMemoryUsage extracts used_memory_human from INFO memory output.
func parseMemoryUsage(info string) string {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory_human:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// scoreAgainst ranks one cached document against a query. An empty query
// matches everything at its stored relevance.
func scoreAgainst(query string, r *search.SearchResult) (int, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.RelevanceScore, true
	}

	title := strings.ToLower(r.Title)
	switch {
	case title == q:
		return 100, true
	case strings.Contains(title, q):
		return 85, true
	case strings.Contains(strings.ToLower(r.Description), q):
		return 70, true
	case strings.Contains(strings.ToLower(r.Author), q):
		return 60, true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return 55, true
		}
	}
	if v, ok := r.MetadataString("conditions"); ok && strings.Contains(strings.ToLower(v), q) {
		return 50, true
	}
	return 0, false
}

// matchesFilters applies the filters the cache can translate: kinds and
// visibility. The orchestrator re-filters the rest.
func matchesFilters(r *search.SearchResult, f *search.SearchFilters) bool {
	if f.IsZero() {
		return true
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if r.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Visibility != "" && r.Visibility != "" && r.Visibility != f.Visibility {
		return false
	}
	return true
}

// sortResults orders results per the options; relevance descending when
// unset.
func sortResults(results []*search.SearchResult, opts *search.SearchOptions) {
	desc := opts.SortOrder != search.SortAsc

	less := func(a, b *search.SearchResult) bool {
		switch opts.SortBy {
		case search.SortByDate:
			at, bt := a.CreatedAt, b.CreatedAt
			switch {
			case at == nil:
				return false
			case bt == nil:
				return true
			default:
				return at.Before(*bt)
			}
		case search.SortByName:
			return a.Title < b.Title
		default:
			return a.RelevanceScore < b.RelevanceScore
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if desc {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})
}

// paginate applies offset and limit.
func paginate(results []*search.SearchResult, opts *search.SearchOptions) []*search.SearchResult {
	if opts.Offset >= len(results) {
		return []*search.SearchResult{}
	}
	results = results[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(results) {
		results = results[:opts.Limit]
	}
	return results
}

// Compile-time interface compliance checks
var _ search.CacheBackend = (*Provider)(nil)
