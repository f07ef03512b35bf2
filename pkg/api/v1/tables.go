// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
)

// DatasetStore lists the datasets held by the database backend.
// *postgres.Provider satisfies it.
type DatasetStore interface {
	Datasets(ctx context.Context) ([]search.DatasetStat, error)
}

// PolicyChecker reports whether a dataset is under a governance policy.
// *governance.Engine satisfies it.
type PolicyChecker interface {
	HasPolicy(dataset string) bool
}

// TablesRoutes defines the routes for dataset discovery.
type TablesRoutes struct {
	store    DatasetStore
	policies PolicyChecker
}

// TablesRouter creates a new router for the tables API. A nil store answers
// with an empty listing; a nil policies marks every dataset ungoverned.
func TablesRouter(store DatasetStore, policies PolicyChecker) http.Handler {
	routes := TablesRoutes{store: store, policies: policies}

	r := chi.NewRouter()
	r.Get("/", routes.listTables)
	return r
}

type tableInfo struct {
	Dataset  string `json:"dataset"`
	Rows     int64  `json:"rows"`
	Governed bool   `json:"governed"`
}

type tablesResponse struct {
	Tables []tableInfo `json:"tables"`
}

func (t *TablesRoutes) listTables(w http.ResponseWriter, r *http.Request) {
	resp := tablesResponse{Tables: []tableInfo{}}

	if t.store != nil {
		stats, err := t.store.Datasets(r.Context())
		if err != nil {
			logger.Errorf("Failed to list datasets: %v", err)
			http.Error(w, "Failed to list datasets", http.StatusInternalServerError)
			return
		}
		for _, stat := range stats {
			resp.Tables = append(resp.Tables, tableInfo{
				Dataset:  stat.Dataset,
				Rows:     stat.Rows,
				Governed: t.policies != nil && t.policies.HasPolicy(stat.Dataset),
			})
		}
	}

	writeJSON(w, resp)
}
