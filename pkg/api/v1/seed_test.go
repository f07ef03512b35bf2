// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/seeding"
)

type countingSink struct {
	mu   sync.Mutex
	rows int
}

func (c *countingSink) UpsertResults(_ context.Context, _ string, results []*search.SearchResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows += len(results)
	return nil
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

func TestSeedRouter_StartAndTrackJob(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	sink := &countingSink{}
	seeder := seeding.New(sink)
	seedRouter := SeedRouter(seeder)
	progressRouter := ProgressRouter(seeder)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dataset":"healthcare","rows":150}`))
	w := httptest.NewRecorder()
	seedRouter.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var started seedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/?jobId="+started.JobID, nil)
		w := httptest.NewRecorder()
		progressRouter.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			return false
		}
		var job seeding.Job
		if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.State == seeding.JobStateDone && job.Completed == 150
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 150, sink.count())
}

func TestSeedRouter_InvalidBody(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	router := SeedRouter(seeding.New(&countingSink{}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dataset":`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestSeedRouter_ValidationFailure(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	router := SeedRouter(seeding.New(&countingSink{}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dataset":"healthcare","rows":0}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "rows must be positive")
}

func TestProgressRouter_MissingJobID(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	router := ProgressRouter(seeding.New(&countingSink{}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing jobId parameter")
}

func TestProgressRouter_UnknownJob(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	router := ProgressRouter(seeding.New(&countingSink{}))

	req := httptest.NewRequest(http.MethodGet, "/?jobId=nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Job not found")
}
