// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package seeding

import (
	"fmt"
	"strings"

	"github.com/prismsearch/prism/pkg/search"
)

// Synthetic patient attributes. The fixed shapes make governance behavior
// observable: ssn and name exercise masking, region and clinician_id
// exercise row filters.
var (
	conditions = []string{"asthma", "diabetes", "hypertension", "flu", "allergy"}
	regions    = []string{"NE", "SW"}
)

const (
	patientDOB     = "1986-03-15"
	patientAddress = "123 Main St, Gotham"
	clinicianPool  = 50
)

// Generate produces n synthetic documents for dataset, for row indices
// [offset, offset+n). The same (dataset, index) always yields the same row,
// so re-seeding upserts rather than duplicates.
//
// Datasets whose name mentions health or patients get the healthcare shape
// with governed fields; everything else gets a generic document shape.
func Generate(dataset string, offset, n int) []*search.SearchResult {
	results := make([]*search.SearchResult, 0, n)
	healthcare := isHealthcare(dataset)
	for i := offset; i < offset+n; i++ {
		if healthcare {
			results = append(results, healthcareRow(dataset, i))
			continue
		}
		results = append(results, genericRow(dataset, i))
	}
	return results
}

func isHealthcare(dataset string) bool {
	name := strings.ToLower(dataset)
	return strings.Contains(name, "health") || strings.Contains(name, "patient") ||
		strings.Contains(name, "clinic")
}

func healthcareRow(dataset string, i int) *search.SearchResult {
	name := fmt.Sprintf("Patient %d", i)
	condition := conditions[i%len(conditions)]
	region := regions[i%len(regions)]

	r := search.NewResult(
		fmt.Sprintf("%s-%d", dataset, i),
		search.KindHealthcareData,
		name,
		baseScore(i),
		search.MatchName,
	)
	r.Description = fmt.Sprintf("Care record for %s treatment", condition)
	r.Category = condition
	r.Visibility = "private"
	r.Tags = []string{condition, region}
	r.Metadata = map[string]any{
		search.FilterDataset: dataset,
		"name":               name,
		"ssn":                fmt.Sprintf("123-45-%04d", i%10000),
		"date_of_birth":      patientDOB,
		"address":            patientAddress,
		"region":             region,
		"conditions":         condition,
		"clinician_id":       fmt.Sprintf("clin-%d", i%clinicianPool),
	}
	return r
}

func genericRow(dataset string, i int) *search.SearchResult {
	title := fmt.Sprintf("%s record %d", titleCase(dataset), i)
	r := search.NewResult(
		fmt.Sprintf("%s-%d", dataset, i),
		search.KindCustom,
		title,
		baseScore(i),
		search.MatchTitle,
	)
	r.Description = fmt.Sprintf("Synthetic document %d in the %s dataset", i, dataset)
	r.Category = dataset
	r.Visibility = "public"
	r.Tags = []string{dataset}
	r.Metadata = map[string]any{
		search.FilterDataset: dataset,
		"sequence":           i,
	}
	return r
}

// baseScore spreads stored relevance over the upper half of the range so
// ranked scans still have something to sort by before query-time scoring.
func baseScore(i int) int {
	return search.MaxRelevanceScore/2 + i%(search.MaxRelevanceScore/2)
}

// titleCase uppercases the first byte; dataset names are validated ASCII.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
