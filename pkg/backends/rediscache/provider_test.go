// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismsearch/prism/pkg/search"
)

func newTestProvider(t *testing.T) (*Provider, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	p := NewWithClient(client, "test")
	require.NoError(t, p.Connect(context.Background()))
	return p, mr
}

func sampleResults() []*search.SearchResult {
	r1 := search.NewResult("doc-1", search.KindHealthcareData, "Patient One", 80, search.MatchName)
	r1.Description = "asthma follow-up"
	r2 := search.NewResult("doc-2", search.KindHealthcareData, "Patient Two", 60, search.MatchName)
	return []*search.SearchResult{r1, r2}
}

func TestNew_RejectsInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := New("not-a-redis-url", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}

func TestProvider_Name(t *testing.T) {
	t.Parallel()

	p := NewWithClient(redis.NewClient(&redis.Options{}), "")
	assert.Equal(t, "cache", p.Name())
}

func TestProvider_ConnectReportsFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p := NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), "test")
	err := p.Connect(context.Background())
	require.ErrorIs(t, err, search.ErrConnectionFailed)
	assert.False(t, p.IsConnected())
}

func TestProvider_RequiresConnect(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	p := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	ctx := context.Background()

	_, err := p.Get(ctx, "k")
	require.ErrorIs(t, err, search.ErrBackendNotConnected)
	require.ErrorIs(t, p.Set(ctx, "k", nil, 0), search.ErrBackendNotConnected)
	require.ErrorIs(t, p.Delete(ctx, "k"), search.ErrBackendNotConnected)
	require.ErrorIs(t, p.Clear(ctx, ""), search.ErrBackendNotConnected)
	_, err = p.Search(ctx, "q", nil)
	require.ErrorIs(t, err, search.ErrBackendNotConnected)
}

func TestProvider_GetSetRoundTrip(t *testing.T) {
	t.Parallel()

	p, mr := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "search:q1", sampleResults(), time.Minute))

	// Keys are namespaced under the provider prefix.
	assert.True(t, mr.Exists("prism:test:search:q1"))

	got, err := p.Get(ctx, "search:q1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-1", got[0].ID)
	assert.Equal(t, 80, got[0].RelevanceScore)
	assert.Equal(t, "asthma follow-up", got[0].Description)
}

func TestProvider_GetMissReturnsErrCacheMiss(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)

	_, err := p.Get(context.Background(), "absent")
	require.ErrorIs(t, err, search.ErrCacheMiss)
	assert.Contains(t, err.Error(), "absent")
}

func TestProvider_SetHonorsTTL(t *testing.T) {
	t.Parallel()

	p, mr := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "expiring", sampleResults(), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("prism:test:expiring"))

	mr.FastForward(2 * time.Minute)

	_, err := p.Get(ctx, "expiring")
	require.ErrorIs(t, err, search.ErrCacheMiss)
}

func TestProvider_Delete(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "gone", sampleResults(), 0))
	require.NoError(t, p.Delete(ctx, "gone"))

	_, err := p.Get(ctx, "gone")
	require.ErrorIs(t, err, search.ErrCacheMiss)

	// Deleting an absent key is not an error.
	require.NoError(t, p.Delete(ctx, "never-existed"))
}

func TestProvider_ClearRespectsNamespace(t *testing.T) {
	t.Parallel()

	p, mr := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "search:a", sampleResults(), 0))
	require.NoError(t, p.Set(ctx, "search:b", sampleResults(), 0))
	require.NoError(t, mr.Set("other-app:data", "kept"))

	require.NoError(t, p.Clear(ctx, ""))

	assert.False(t, mr.Exists("prism:test:search:a"))
	assert.False(t, mr.Exists("prism:test:search:b"))
	assert.True(t, mr.Exists("other-app:data"))
}

func TestProvider_ClearPattern(t *testing.T) {
	t.Parallel()

	p, mr := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "search:a", sampleResults(), 0))
	require.NoError(t, p.Set(ctx, "session:b", sampleResults(), 0))

	require.NoError(t, p.Clear(ctx, "search:*"))

	assert.False(t, mr.Exists("prism:test:search:a"))
	assert.True(t, mr.Exists("prism:test:session:b"))
}

func TestProvider_SearchRanksStoredDocuments(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	exact := search.NewResult("p-1", search.KindHealthcareData, "Diabetes", 10, search.MatchName)
	mention := search.NewResult("p-2", search.KindHealthcareData, "Patient Two", 10, search.MatchName)
	mention.Description = "monitoring diabetes progression"
	unrelated := search.NewResult("p-3", search.KindHealthcareData, "Patient Three", 90, search.MatchName)

	require.NoError(t, p.Set(ctx, "seed:1", []*search.SearchResult{exact, mention}, 0))
	require.NoError(t, p.Set(ctx, "seed:2", []*search.SearchResult{unrelated}, 0))

	got, err := p.Search(ctx, "Diabetes", search.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Exact title match outranks a description mention.
	assert.Equal(t, "p-1", got[0].ID)
	assert.Equal(t, 100, got[0].RelevanceScore)
	assert.Equal(t, "p-2", got[1].ID)
	assert.Equal(t, 70, got[1].RelevanceScore)
}

func TestProvider_SearchDeduplicatesAcrossEntries(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	exact := search.NewResult("p-1", search.KindHealthcareData, "asthma", 10, search.MatchName)
	partial := search.NewResult("p-1", search.KindHealthcareData, "asthma and allergies", 10, search.MatchName)

	require.NoError(t, p.Set(ctx, "seed:1", []*search.SearchResult{partial}, 0))
	require.NoError(t, p.Set(ctx, "seed:2", []*search.SearchResult{exact}, 0))

	got, err := p.Search(ctx, "asthma", search.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].RelevanceScore)
}

func TestProvider_SearchHonorsLimitAndOffset(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	docs := []*search.SearchResult{
		search.NewResult("a", search.KindBook, "go basics", 10, search.MatchTitle),
		search.NewResult("b", search.KindBook, "advanced go patterns", 10, search.MatchTitle),
		search.NewResult("c", search.KindBook, "a novel about go", 10, search.MatchTitle),
	}
	require.NoError(t, p.Set(ctx, "seed:1", docs, 0))

	opts := search.DefaultOptions()
	opts.SortBy = search.SortByName
	opts.SortOrder = search.SortAsc
	opts.Limit = 1
	opts.Offset = 1

	got, err := p.Search(ctx, "go", opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "advanced go patterns", got[0].Title)

	opts.Offset = 10
	got, err = p.Search(ctx, "go", opts)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProvider_SearchFiltersKinds(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	docs := []*search.SearchResult{
		search.NewResult("b-1", search.KindBook, "go for clinicians", 10, search.MatchTitle),
		search.NewResult("h-1", search.KindHealthcareData, "go therapy notes", 10, search.MatchName),
	}
	require.NoError(t, p.Set(ctx, "seed:1", docs, 0))

	opts := search.DefaultOptions()
	opts.Filters = &search.SearchFilters{Kinds: []search.ResultKind{search.KindBook}}

	got, err := p.Search(ctx, "go", opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b-1", got[0].ID)
}

func TestProvider_SearchSkipsForeignEntries(t *testing.T) {
	t.Parallel()

	p, mr := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("prism:test:corrupt", "{not json"))
	require.NoError(t, p.Set(ctx, "seed:1", sampleResults(), 0))

	got, err := p.Search(ctx, "patient", search.DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestProvider_SearchDoesNotMutateStoredEntries(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	doc := search.NewResult("p-1", search.KindHealthcareData, "asthma", 10, search.MatchName)
	require.NoError(t, p.Set(ctx, "seed:1", []*search.SearchResult{doc}, 0))

	_, err := p.Search(ctx, "asthma", search.DefaultOptions())
	require.NoError(t, err)

	stored, err := p.Get(ctx, "seed:1")
	require.NoError(t, err)
	assert.Equal(t, 10, stored[0].RelevanceScore)
}

func TestProvider_Health(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "a", sampleResults(), 0))
	require.NoError(t, p.Set(ctx, "b", sampleResults(), 0))

	status, err := p.Health(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsConnected)
	assert.True(t, status.IsSearchAvailable)
	assert.GreaterOrEqual(t, status.LatencyMs, int64(0))
	assert.Equal(t, int64(2), status.KeyCount)
	assert.NotEmpty(t, status.MemoryUsage)
}

func TestProvider_HealthReportsUnreachableServer(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p := NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), "test")
	status, err := p.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsConnected)
	assert.Equal(t, search.StatusUnhealthy, status.Status)
	assert.NotEmpty(t, status.Errors)
}

func TestParseMemoryUsage(t *testing.T) {
	t.Parallel()

	info := "# Memory\r\nused_memory:1024\r\nused_memory_human:1.00K\r\n"
	assert.Equal(t, "1.00K", parseMemoryUsage(info))
	assert.Empty(t, parseMemoryUsage("# Memory\r\nused_memory:1024\r\n"))
}
