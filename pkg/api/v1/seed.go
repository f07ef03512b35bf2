// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/seeding"
)

// SeedRoutes defines the routes for dataset seeding and job progress.
type SeedRoutes struct {
	seeder *seeding.Seeder
}

// SeedRouter creates a new router for starting seed jobs.
func SeedRouter(seeder *seeding.Seeder) http.Handler {
	routes := SeedRoutes{seeder: seeder}

	r := chi.NewRouter()
	r.Post("/", routes.startSeed)
	return r
}

// ProgressRouter creates a new router for seed job progress lookups.
func ProgressRouter(seeder *seeding.Seeder) http.Handler {
	routes := SeedRoutes{seeder: seeder}

	r := chi.NewRouter()
	r.Get("/", routes.getProgress)
	return r
}

type seedResponse struct {
	JobID string `json:"job_id"`
}

// startSeed launches a background seeding job and answers 202 with its id.
func (s *SeedRoutes) startSeed(w http.ResponseWriter, r *http.Request) {
	var req seeding.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.seeder.StartJob(r.Context(), req)
	if err != nil {
		if errors.Is(err, search.ErrInvalidConfig) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Errorf("Failed to start seed job: %v", err)
		http.Error(w, "Failed to start seed job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSONBody(w, seedResponse{JobID: id})
}

// getProgress answers with the job snapshot for ?jobId=.
func (s *SeedRoutes) getProgress(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("jobId")
	if id == "" {
		http.Error(w, "Missing jobId parameter", http.StatusBadRequest)
		return
	}

	job, err := s.seeder.Progress(id)
	if err != nil {
		if errors.Is(err, search.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		logger.Errorf("Failed to look up seed job %s: %v", id, err)
		http.Error(w, "Failed to look up seed job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, job)
}
