// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prismsearch/prism/pkg/search"
)

// documentColumns is the SELECT column list shared by search queries.
const documentColumns = `id, dataset, kind, title, description, author, category,
	language, visibility, tags, metadata, created_at, updated_at`

// documentRow mirrors one search_documents row plus the computed ranking
// columns.
type documentRow struct {
	ID          string    `db:"id"`
	Dataset     string    `db:"dataset"`
	Kind        string    `db:"kind"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Author      string    `db:"author"`
	Category    string    `db:"category"`
	Language    string    `db:"language"`
	Visibility  string    `db:"visibility"`
	Tags        []byte    `db:"tags"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Relevance   int       `db:"relevance"`
	MatchType   string    `db:"match_type"`
}

// Search runs an ILIKE + trigram-similarity query and maps rows to results.
// Relevance is computed in SQL: base 50, up to 40 for the strongest matching
// field, up to 30 for title similarity, 20 for an exact title, clamped to
// [0,100].
func (p *Provider) Search(ctx context.Context, query string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
	if err := p.requireConnected(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = search.DefaultOptions()
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = search.DefaultOffset
	}

	sqlText, args := buildSearchQuery(query, opts.Filters, sortClause(opts), limit, offset)

	rows, err := p.db.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %w", search.ErrSearchFailed, err)
	}
	defer func() { _ = rows.Close() }()

	results := []*search.SearchResult{}
	for rows.Next() {
		var row documentRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		r, err := row.toResult()
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}

	return results, nil
}

func (row *documentRow) toResult() (*search.SearchResult, error) {
	var tags []string
	if len(row.Tags) > 0 {
		if err := json.Unmarshal(row.Tags, &tags); err != nil {
			return nil, fmt.Errorf("decoding tags for %s: %w", row.ID, err)
		}
	}

	metadata := make(map[string]any)
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", row.ID, err)
		}
	}
	// The dataset column rides along in metadata so the governance layer
	// sees it without knowing the schema.
	metadata[search.FilterDataset] = row.Dataset

	r := &search.SearchResult{
		ID:             row.ID,
		Kind:           search.ResultKind(row.Kind),
		Title:          row.Title,
		RelevanceScore: search.ClampScore(row.Relevance),
		MatchType:      search.MatchType(row.MatchType),
		Description:    row.Description,
		Author:         row.Author,
		Category:       row.Category,
		Language:       row.Language,
		Visibility:     row.Visibility,
		Tags:           tags,
		Metadata:       metadata,
	}
	if !row.CreatedAt.IsZero() {
		t := row.CreatedAt
		r.CreatedAt = &t
	}
	if !row.UpdatedAt.IsZero() {
		t := row.UpdatedAt
		r.UpdatedAt = &t
	}
	return r, nil
}

// queryBuilder accumulates WHERE predicates and positional args.
type queryBuilder struct {
	where []string
	args  []any
}

// arg registers a positional argument and returns its placeholder.
func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// buildSearchQuery assembles the ranked search statement. An empty query
// browses the whole table at base relevance.
func buildSearchQuery(query string, filters *search.SearchFilters, orderBy string, limit, offset int) (string, []any) {
	b := &queryBuilder{}

	scoreExpr := "50"
	matchExpr := "'custom'"
	if q := strings.TrimSpace(query); q != "" {
		term := b.arg(q)
		pattern := fmt.Sprintf("'%%' || %s || '%%'", term)

		b.where = append(b.where, fmt.Sprintf(
			`(title ILIKE %[1]s OR description ILIKE %[1]s OR author ILIKE %[1]s
	OR metadata::text ILIKE %[1]s OR similarity(title, %[2]s) > 0.3)`,
			pattern, term))

		scoreExpr = fmt.Sprintf(`50
	+ 40 * CASE WHEN title ILIKE %[1]s THEN 1.0
		WHEN description ILIKE %[1]s THEN 0.6
		WHEN author ILIKE %[1]s THEN 0.4
		ELSE 0 END
	+ 30 * similarity(title, %[2]s)
	+ CASE WHEN LOWER(title) = LOWER(%[2]s) THEN 20 ELSE 0 END`,
			pattern, term)

		matchExpr = fmt.Sprintf(`CASE WHEN title ILIKE %[1]s THEN 'title'
	WHEN description ILIKE %[1]s THEN 'description'
	WHEN author ILIKE %[1]s THEN 'author'
	ELSE 'custom' END`,
			pattern)
	}

	applyFilters(b, filters)

	var sb strings.Builder
	sb.WriteString("SELECT " + documentColumns + ",\n")
	sb.WriteString("LEAST(100, GREATEST(0, " + scoreExpr + "))::int AS relevance,\n")
	sb.WriteString(matchExpr + " AS match_type\n")
	sb.WriteString("FROM search_documents")
	if len(b.where) > 0 {
		sb.WriteString("\nWHERE " + strings.Join(b.where, "\n  AND "))
	}
	sb.WriteString("\nORDER BY " + orderBy)
	sb.WriteString("\nLIMIT " + b.arg(limit) + " OFFSET " + b.arg(offset))

	return sb.String(), b.args
}

// applyFilters translates the filter set into WHERE predicates. Keys and
// values bind as parameters; nothing from the caller is interpolated.
func applyFilters(b *queryBuilder, f *search.SearchFilters) {
	if f.IsZero() {
		return
	}

	if len(f.Kinds) > 0 {
		ph := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			ph[i] = b.arg(string(k))
		}
		b.where = append(b.where, fmt.Sprintf("kind IN (%s)", strings.Join(ph, ", ")))
	}
	if len(f.Categories) > 0 {
		ph := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			ph[i] = b.arg(c)
		}
		b.where = append(b.where, fmt.Sprintf("category IN (%s)", strings.Join(ph, ", ")))
	}
	if len(f.Languages) > 0 {
		ph := make([]string, len(f.Languages))
		for i, l := range f.Languages {
			ph[i] = b.arg(l)
		}
		b.where = append(b.where, fmt.Sprintf("language IN (%s)", strings.Join(ph, ", ")))
	}
	if f.Visibility != "" {
		b.where = append(b.where, "visibility = "+b.arg(f.Visibility))
	}
	if f.DateRange != nil {
		if f.DateRange.From != nil {
			b.where = append(b.where, "created_at >= "+b.arg(*f.DateRange.From))
		}
		if f.DateRange.To != nil {
			b.where = append(b.where, "created_at <= "+b.arg(*f.DateRange.To))
		}
	}

	applyExtraFilters(b, f.Extra)
}

// applyExtraFilters pushes governance hints and ad-hoc metadata filters into
// the query. Keys are visited in sorted order so statements are stable.
func applyExtraFilters(b *queryBuilder, extra map[string]any) {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := extra[k]
		switch k {
		case search.FilterDataset:
			b.where = append(b.where, "dataset = "+b.arg(fmt.Sprintf("%v", v)))

		case search.FilterAllowedRegions:
			// The hint carries the allow-list; the column lives in
			// metadata under "region". An empty list matches nothing.
			list, _ := stringList(v)
			if len(list) == 0 {
				b.where = append(b.where, "FALSE")
				continue
			}
			key := b.arg("region")
			ph := make([]string, len(list))
			for i, s := range list {
				ph[i] = b.arg(s)
			}
			b.where = append(b.where, fmt.Sprintf("metadata->>%s IN (%s)", key, strings.Join(ph, ", ")))

		default:
			if list, ok := stringList(v); ok {
				if len(list) == 0 {
					b.where = append(b.where, "FALSE")
					continue
				}
				key := b.arg(k)
				ph := make([]string, len(list))
				for i, s := range list {
					ph[i] = b.arg(s)
				}
				b.where = append(b.where, fmt.Sprintf("metadata->>%s IN (%s)", key, strings.Join(ph, ", ")))
				continue
			}
			b.where = append(b.where, fmt.Sprintf("metadata->>%s = %s", b.arg(k), b.arg(fmt.Sprintf("%v", v))))
		}
	}
}

// stringList normalizes slice-typed filter values.
func stringList(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, len(vv))
		for i, e := range vv {
			out[i] = fmt.Sprintf("%v", e)
		}
		return out, true
	}
	return nil, false
}

// sortClause maps the sort options to an ORDER BY expression with a stable
// id tiebreak.
func sortClause(opts *search.SearchOptions) string {
	col := "relevance"
	switch opts.SortBy {
	case search.SortByDate:
		col = "created_at"
	case search.SortByName:
		col = "title"
	}

	dir := "DESC"
	if opts.SortOrder == search.SortAsc {
		dir = "ASC"
	}
	return col + " " + dir + ", id ASC"
}
