// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"slices"
	"strings"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
)

// Placeholders recognized inside row filters.
const (
	regionPlaceholder = "${user.allowed_regions}"
	userIDPlaceholder = "${user.id}"
)

// rowPredicate reports whether one result is visible to the caller.
type rowPredicate func(r *search.SearchResult) bool

func allowAll(*search.SearchResult) bool { return true }

// compileRowFilter turns a policy row filter into a predicate over results.
// Three forms are recognized: the allow-all literals, region membership, and
// clinician ownership. Anything else allows every row, matching the original
// policy language where unknown filters are advisory.
func compileRowFilter(filter RowFilter, sctx *search.SecurityContext) rowPredicate {
	f := strings.TrimSpace(string(filter))
	switch f {
	case "", "true", "TRUE", "1":
		return allowAll
	}

	if strings.Contains(f, regionPlaceholder) {
		allowed := sctx.AllowedRegions
		return func(r *search.SearchResult) bool {
			region, ok := r.MetadataString("region")
			return ok && slices.Contains(allowed, region)
		}
	}

	if strings.Contains(f, userIDPlaceholder) {
		userID := sctx.UserID
		return func(r *search.SearchResult) bool {
			id, ok := r.MetadataString("clinician_id")
			return ok && id == userID
		}
	}

	logger.Debugf("Unrecognized row filter %q, allowing all rows", f)
	return allowAll
}

// filterHints translates a row filter into backend filter hints. Backends
// that can push the predicate down use them; results are re-checked
// in-process either way.
func filterHints(filter RowFilter, sctx *search.SecurityContext) map[string]any {
	f := strings.TrimSpace(string(filter))
	hints := make(map[string]any)

	if strings.Contains(f, regionPlaceholder) {
		hints[search.FilterAllowedRegions] = slices.Clone(sctx.AllowedRegions)
	}
	if strings.Contains(f, userIDPlaceholder) {
		hints[search.FilterClinicianID] = sctx.UserID
	}

	return hints
}
