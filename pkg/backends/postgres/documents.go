// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prismsearch/prism/pkg/search"
)

// Document is one row to write into search_documents. The seeder and any
// future ingestion surface use this type; reads go through Search.
type Document struct {
	ID          string
	Dataset     string
	Kind        string
	Title       string
	Description string
	Author      string
	Category    string
	Language    string
	Visibility  string
	Tags        []string
	Metadata    map[string]any
}

const upsertDocumentQuery = `
INSERT INTO search_documents (
	id, dataset, kind, title, description, author,
	category, language, visibility, tags, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	dataset = EXCLUDED.dataset,
	kind = EXCLUDED.kind,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	author = EXCLUDED.author,
	category = EXCLUDED.category,
	language = EXCLUDED.language,
	visibility = EXCLUDED.visibility,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	updated_at = now()`

// UpsertDocuments writes documents one by one, updating rows that already
// exist. Re-seeding a dataset is therefore idempotent.
func (p *Provider) UpsertDocuments(ctx context.Context, docs []*Document) error {
	if err := p.requireConnected(); err != nil {
		return err
	}

	for _, doc := range docs {
		tagsJSON, err := encodeJSON(doc.Tags, "[]")
		if err != nil {
			return fmt.Errorf("encoding tags for %q: %w", doc.ID, err)
		}
		metaJSON, err := encodeJSON(doc.Metadata, "{}")
		if err != nil {
			return fmt.Errorf("encoding metadata for %q: %w", doc.ID, err)
		}

		dataset := doc.Dataset
		if dataset == "" {
			dataset = "default"
		}
		visibility := doc.Visibility
		if visibility == "" {
			visibility = "public"
		}

		if _, err := p.db.ExecContext(ctx, upsertDocumentQuery,
			doc.ID, dataset, doc.Kind, doc.Title, doc.Description, doc.Author,
			doc.Category, doc.Language, visibility, tagsJSON, metaJSON,
		); err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID, err)
		}
	}
	return nil
}

// UpsertResults converts normalized results into rows and writes them. The
// seeder talks to the provider through this surface.
func (p *Provider) UpsertResults(ctx context.Context, dataset string, results []*search.SearchResult) error {
	docs := make([]*Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, ResultToDocument(r, dataset))
	}
	return p.UpsertDocuments(ctx, docs)
}

// Datasets lists the stored datasets with their row counts, ordered by name.
func (p *Provider) Datasets(ctx context.Context) ([]search.DatasetStat, error) {
	if err := p.requireConnected(); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryxContext(ctx,
		"SELECT dataset, count(*) AS total FROM search_documents GROUP BY dataset ORDER BY dataset")
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var stats []search.DatasetStat
	for rows.Next() {
		var stat search.DatasetStat
		if err := rows.Scan(&stat.Dataset, &stat.Rows); err != nil {
			return nil, fmt.Errorf("scanning dataset row: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating datasets: %w", err)
	}
	return stats, nil
}

// CountDocuments returns the number of stored rows, optionally restricted to
// one dataset.
func (p *Provider) CountDocuments(ctx context.Context, dataset string) (int64, error) {
	if err := p.requireConnected(); err != nil {
		return 0, err
	}

	query := "SELECT count(*) FROM search_documents"
	var args []any
	if dataset != "" {
		query += " WHERE dataset = $1"
		args = append(args, dataset)
	}

	var count int64
	row := p.db.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// encodeJSON marshals v for a jsonb column, substituting empty for nil so the
// column never stores SQL-visible JSON null.
func encodeJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	switch vv := v.(type) {
	case []string:
		if vv == nil {
			return empty, nil
		}
	case map[string]any:
		if vv == nil {
			return empty, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ResultToDocument converts a normalized search result back into a writable
// row. An empty dataset falls back to the result's own metadata.
func ResultToDocument(r *search.SearchResult, dataset string) *Document {
	doc := &Document{
		ID:          r.ID,
		Dataset:     dataset,
		Kind:        string(r.Kind),
		Title:       r.Title,
		Description: r.Description,
		Author:      r.Author,
		Category:    r.Category,
		Language:    r.Language,
		Visibility:  r.Visibility,
		Tags:        r.Tags,
		Metadata:    r.Metadata,
	}
	if dataset == "" {
		if ds, ok := r.MetadataString(search.FilterDataset); ok {
			doc.Dataset = ds
		}
	}
	return doc
}
