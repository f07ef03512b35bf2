// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package v1 contains the HTTP handlers for the façade's v1 API surface.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/search/orchestrator"
)

// SearchRoutes defines the routes for running searches.
type SearchRoutes struct {
	orch  *orchestrator.Orchestrator
	debug bool
}

// SearchRouter creates a new router for the search API. When the
// orchestrator carries a governance engine, every request goes through
// SecureSearch and the caller identity headers are honored.
func SearchRouter(orch *orchestrator.Orchestrator, debug bool) http.Handler {
	routes := SearchRoutes{orch: orch, debug: debug}

	r := chi.NewRouter()
	r.Get("/", routes.search)
	return r
}

// searchResponse is the wire shape of one search answer.
type searchResponse struct {
	Items        []*search.SearchResult  `json:"items"`
	Page         int                     `json:"page"`
	Total        int                     `json:"total"`
	MaskedFields []string                `json:"maskedFields,omitempty"`
	Strategy     search.StrategyDecision `json:"strategy"`
	Performance  search.Performance      `json:"performance"`
	AuditID      string                  `json:"audit_id,omitempty"`
}

// search runs one query. Backend failures are recovered inside the
// orchestrator, so a 200 with empty items and performance.errors is a valid
// answer; only timeouts, denials, and total hybrid failure map to errors.
func (s *SearchRoutes) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing q parameter", http.StatusBadRequest)
		return
	}

	opts, err := optionsFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.orch.HasGovernance() {
		resp, err := s.orch.Search(ctx, query, opts)
		if err != nil {
			s.writeSearchError(w, query, err)
			return
		}
		writeJSON(w, searchResponse{
			Items:       resp.Results,
			Page:        pageOf(opts),
			Total:       resp.Total,
			Strategy:    resp.Strategy,
			Performance: resp.Performance,
		})
		return
	}

	sctx, err := securityContextFromRequest(r)
	if err != nil {
		http.Error(w, "Invalid X-User-Context header", http.StatusBadRequest)
		return
	}

	resp, err := s.orch.SecureSearch(ctx, query, sctx, opts)
	if err != nil {
		s.writeSearchError(w, query, err)
		return
	}
	writeJSON(w, searchResponse{
		Items:        resp.Results,
		Page:         pageOf(opts),
		Total:        resp.Total,
		MaskedFields: resp.MaskedFields,
		Strategy:     resp.Strategy,
		Performance:  resp.Performance,
		AuditID:      resp.AuditID,
	})
}

// writeSearchError maps orchestrator errors onto status codes. Unknown
// errors stay opaque unless debug mode is on.
func (s *SearchRoutes) writeSearchError(w http.ResponseWriter, query string, err error) {
	switch {
	case errors.Is(err, search.ErrAccessDenied):
		http.Error(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, search.ErrSearchTimeout):
		http.Error(w, "Search timed out", http.StatusGatewayTimeout)
	default:
		logger.Errorf("Search %q failed: %v", query, err)
		body := "Search failed"
		if s.debug {
			body = err.Error()
		}
		http.Error(w, body, http.StatusInternalServerError)
	}
}

// optionsFromRequest builds per-call options from the query string,
// starting from the documented defaults.
func optionsFromRequest(r *http.Request) (*search.SearchOptions, error) {
	opts := search.DefaultOptions()
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid offset %q", v)
		}
		opts.Offset = n
	}
	if v := q.Get("dataset"); v != "" {
		opts.Filters = &search.SearchFilters{
			Extra: map[string]any{search.FilterDataset: v},
		}
	}
	if v := q.Get("sort_by"); v != "" {
		opts.SortBy = search.SortBy(v)
	}
	if v := q.Get("sort_order"); v != "" {
		opts.SortOrder = search.SortOrder(v)
	}
	return opts, nil
}

// securityContextFromRequest assembles the caller identity from the
// X-User-Context JSON header plus the X-User-Role override. The façade sits
// behind an authenticating proxy; these headers are trusted.
func securityContextFromRequest(r *http.Request) (*search.SecurityContext, error) {
	sctx := &search.SecurityContext{}
	if raw := r.Header.Get("X-User-Context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), sctx); err != nil {
			return nil, fmt.Errorf("decoding user context: %w", err)
		}
	}
	if role := r.Header.Get("X-User-Role"); role != "" {
		sctx.UserRole = role
	}
	sctx.IPAddress = r.RemoteAddr
	sctx.UserAgent = r.UserAgent()
	return sctx, nil
}

// pageOf converts offset/limit pagination into a 1-based page number.
func pageOf(opts *search.SearchOptions) int {
	return opts.Offset/opts.Limit + 1
}

// writeJSON sets the JSON content type and encodes v as the response body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSONBody(w, v)
}

// writeJSONBody encodes v once headers are final. Encoding failures can only
// be logged at this point; the status line is already on the wire.
func writeJSONBody(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to marshal response: %v", err)
	}
}
