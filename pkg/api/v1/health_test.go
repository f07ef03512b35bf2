// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/search/orchestrator"
)

func TestHealthRouter_Healthy(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	db, _ := newSearchBackends(t)
	db.EXPECT().Health(gomock.Any()).Return(healthyStatus(), nil)

	orch := newOrchestrator(t, db, nil)
	router := HealthRouter(orch)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var report orchestrator.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, search.StatusHealthy, report.Status)
	assert.Contains(t, report.Backends, "database")
	assert.Contains(t, report.Breakers, "database")
	assert.False(t, report.Timestamp.IsZero())
}

func TestHealthRouter_DatabaseDownIs503(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	db, _ := newSearchBackends(t)
	db.EXPECT().Health(gomock.Any()).Return(nil, errors.New("dial tcp: connection refused"))

	orch := newOrchestrator(t, db, nil)
	router := HealthRouter(orch)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report orchestrator.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, search.StatusUnhealthy, report.Status)
}

func TestHealthRouter_StrugglingCacheDegrades(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	db, cache := newSearchBackends(t)
	db.EXPECT().Health(gomock.Any()).Return(healthyStatus(), nil)
	cache.EXPECT().Health(gomock.Any()).Return(nil, errors.New("redis: pool timeout"))

	orch := newOrchestrator(t, db, cache)
	router := HealthRouter(orch)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Degraded still serves traffic through the database.
	require.Equal(t, http.StatusOK, w.Code)

	var report orchestrator.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, search.StatusDegraded, report.Status)
	assert.Contains(t, report.Backends, "cache")
	assert.Equal(t, search.StatusUnhealthy, report.Backends["cache"].Status)
}
