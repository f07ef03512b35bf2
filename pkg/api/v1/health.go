// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/search/orchestrator"
)

// HealthRoutes defines the routes for the health check.
type HealthRoutes struct {
	orch *orchestrator.Orchestrator
}

// HealthRouter sets up the health check router.
func HealthRouter(orch *orchestrator.Orchestrator) http.Handler {
	routes := HealthRoutes{orch: orch}

	r := chi.NewRouter()
	r.Get("/", routes.getHealth)
	return r
}

// getHealth reports aggregate backend health. A degraded cache still
// answers 200; only a failing database makes the façade unhealthy.
func (h *HealthRoutes) getHealth(w http.ResponseWriter, r *http.Request) {
	report := h.orch.Health(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == search.StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSONBody(w, report)
}
