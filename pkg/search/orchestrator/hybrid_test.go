// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/prismsearch/prism/pkg/config"
	"github.com/prismsearch/prism/pkg/search"
)

func hybridConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Search.HybridSearch.Enabled = true
	return cfg
}

func TestOrchestrator_HybridMergesBothLegs(t *testing.T) {
	t.Parallel()

	db, cache := newBackends(t)

	cache.EXPECT().Health(gomock.Any()).Return(healthyStatus(), nil)
	// Hybrid legs rank the cached corpus directly; no exact-key lookup.
	cache.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return([]*search.SearchResult{scored("a", 80), scored("b", 60)}, nil)
	db.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return([]*search.SearchResult{scored("b", 90), scored("c", 50)}, nil)

	o := newOrch(t, hybridConfig(), db, cache)

	resp, err := o.Search(context.Background(), "coffee", nil)
	require.NoError(t, err)

	// Weighted 0.7/0.3: a = 80*0.7 = 56, b = 60*0.7 + 90*0.3 = 69,
	// c = 50*0.3 = 15.
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "b", resp.Results[0].ID)
	assert.Equal(t, 69, resp.Results[0].RelevanceScore)
	assert.Equal(t, "a", resp.Results[1].ID)
	assert.Equal(t, 56, resp.Results[1].RelevanceScore)
	assert.Equal(t, "c", resp.Results[2].ID)
	assert.Equal(t, 15, resp.Results[2].RelevanceScore)

	assert.Equal(t, search.StrategyHybrid, resp.Strategy.Primary)
	assert.Equal(t, "merged 2 cache and 2 database results", resp.Strategy.Reason)
	assert.Equal(t, search.StrategyHybrid, resp.Performance.Strategy)
	assert.True(t, resp.Performance.CacheHit)

	assert.Equal(t, int64(1), o.Stats().HybridSearches)
}

func TestOrchestrator_HybridDatabaseFailureServesCacheLeg(t *testing.T) {
	t.Parallel()

	db, cache := newBackends(t)
	fromCache := []*search.SearchResult{scored("a", 80)}

	cache.EXPECT().Health(gomock.Any()).Return(healthyStatus(), nil)
	cache.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).Return(fromCache, nil)
	db.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return(nil, errors.New("pq: too many connections"))

	o := newOrch(t, hybridConfig(), db, cache)

	resp, err := o.Search(context.Background(), "coffee", nil)
	require.NoError(t, err)

	assert.Equal(t, search.StrategyCache, resp.Strategy.Primary)
	assert.Equal(t, "database failed", resp.Strategy.Reason)
	assert.Equal(t, fromCache, resp.Results)
	assert.True(t, resp.Performance.CacheHit)
	assert.Equal(t, []string{"database: pq: too many connections"}, resp.Performance.Errors)
}

func TestOrchestrator_HybridCacheFailureServesDatabaseLeg(t *testing.T) {
	t.Parallel()

	db, cache := newBackends(t)
	fromDB := []*search.SearchResult{scored("a", 80)}

	cache.EXPECT().Health(gomock.Any()).Return(healthyStatus(), nil)
	cache.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return(nil, errors.New("redis: down"))
	db.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).Return(fromDB, nil)

	o := newOrch(t, hybridConfig(), db, cache)

	resp, err := o.Search(context.Background(), "coffee", nil)
	require.NoError(t, err)

	assert.Equal(t, search.StrategyDatabase, resp.Strategy.Primary)
	assert.Equal(t, "cache failed", resp.Strategy.Reason)
	assert.Equal(t, fromDB, resp.Results)
	assert.False(t, resp.Performance.CacheHit)
	assert.Equal(t, []string{"cache: redis: down"}, resp.Performance.Errors)
}

func TestOrchestrator_HybridBothLegsFailedIsAnError(t *testing.T) {
	t.Parallel()

	db, cache := newBackends(t)
	cache.EXPECT().Health(gomock.Any()).Return(healthyStatus(), nil)
	cache.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return(nil, errors.New("redis: down"))
	db.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return(nil, errors.New("pq: connection reset"))

	o := newOrch(t, hybridConfig(), db, cache)

	resp, err := o.Search(context.Background(), "coffee", nil)
	require.ErrorIs(t, err, search.ErrHybridSearchFailure)
	assert.ErrorContains(t, err, "redis: down")
	assert.ErrorContains(t, err, "pq: connection reset")
	assert.Nil(t, resp)

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.BackendErrors["cache"])
	assert.Equal(t, int64(1), stats.BackendErrors["database"])
}

func TestOrchestrator_HybridUnionAlgorithm(t *testing.T) {
	t.Parallel()

	db, cache := newBackends(t)
	cache.EXPECT().Health(gomock.Any()).Return(healthyStatus(), nil)
	cache.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return([]*search.SearchResult{scored("a", 80), scored("b", 60)}, nil)
	db.EXPECT().Search(gomock.Any(), "coffee", gomock.Any()).
		Return([]*search.SearchResult{scored("b", 90), scored("c", 50)}, nil)

	cfg := hybridConfig()
	cfg.Search.HybridSearch.Algorithm = "union"
	o := newOrch(t, cfg, db, cache)

	resp, err := o.Search(context.Background(), "coffee", nil)
	require.NoError(t, err)

	// Union keeps the cache instance of b (score 60) and orders by score.
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Equal(t, "b", resp.Results[1].ID)
	assert.Equal(t, 60, resp.Results[1].RelevanceScore)
	assert.Equal(t, "c", resp.Results[2].ID)
}
