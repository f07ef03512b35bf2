// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/prismsearch/prism/pkg/config"
	"github.com/prismsearch/prism/pkg/governance"
	"github.com/prismsearch/prism/pkg/search"
)

// healthcareEngine builds an engine with one governed dataset: analysts see
// every region with ssn partially redacted, business users only their
// regions, clinicians only their own patients.
func healthcareEngine(t *testing.T) *governance.Engine {
	t.Helper()

	engine, err := governance.New(governance.Config{
		Policies: governance.PolicySet{
			"healthcare": &governance.Policy{
				Roles: []*governance.RolePolicy{
					{
						ID:          "analyst",
						RowFilter:   "true",
						ColumnMasks: map[string]string{"ssn": "redact_part(keep=4)"},
					},
					{
						ID:          "business_user",
						RowFilter:   "region in ${user.allowed_regions}",
						ColumnMasks: map[string]string{"ssn": "redact_full"},
					},
					{
						ID:        "clinician",
						RowFilter: "clinician_id = ${user.id}",
					},
				},
			},
		},
	})
	require.NoError(t, err)
	return engine
}

func patientRow(id, ssn, region string) *search.SearchResult {
	r := search.NewResult(id, search.KindHealthcareData, "Patient "+id, 80, search.MatchName)
	r.Metadata = map[string]any{"ssn": ssn, "region": region}
	return r
}

func healthcareOptions() *search.SearchOptions {
	opts := search.DefaultOptions()
	opts.Filters = &search.SearchFilters{
		Extra: map[string]any{search.FilterDataset: "healthcare"},
	}
	return opts
}

func TestOrchestrator_SecureSearchMasksAndAudits(t *testing.T) {
	t.Parallel()

	db, _ := newBackends(t)
	db.EXPECT().Search(gomock.Any(), "asthma", gomock.Any()).
		Return([]*search.SearchResult{
			patientRow("h-1", "123-45-6789", "NE"),
			patientRow("h-2", "999-88-7777", "SW"),
		}, nil)

	engine := healthcareEngine(t)
	o := newOrch(t, config.DefaultConfig(), db, nil, WithGovernance(engine))

	sctx := &search.SecurityContext{UserID: "u1", UserRole: "analyst"}
	resp, err := o.SecureSearch(context.Background(), "asthma", sctx, healthcareOptions())
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	ssn, ok := resp.Results[0].MetadataString("ssn")
	require.True(t, ok)
	assert.Equal(t, "*******6789", ssn)
	assert.Equal(t, []string{"ssn"}, resp.MaskedFields)
	assert.Equal(t, 2, resp.Total)

	entry, ok := engine.GetAuditEntry(resp.AuditID)
	require.True(t, ok, "audit entry must be retrievable by id")
	assert.True(t, entry.Success)
	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, "analyst", entry.UserRole)
	assert.Equal(t, "healthcare", entry.Resource)
	assert.Equal(t, 2, entry.ResultCount)
	assert.Contains(t, entry.ComplianceFlags, governance.FlagColumnMasking)
	assert.NotEmpty(t, entry.SessionID)
}

func TestOrchestrator_SecureSearchDeniesAnonymous(t *testing.T) {
	t.Parallel()

	db, _ := newBackends(t)
	engine := healthcareEngine(t)
	o := newOrch(t, config.DefaultConfig(), db, nil, WithGovernance(engine))

	resp, err := o.SecureSearch(context.Background(), "asthma", nil, healthcareOptions())
	require.ErrorIs(t, err, search.ErrAccessDenied)
	assert.Nil(t, resp)

	// Denials are audited, not swallowed.
	assert.Equal(t, 1, engine.AuditLen())
}

func TestOrchestrator_SecureSearchWithoutGovernance(t *testing.T) {
	t.Parallel()

	db, _ := newBackends(t)
	o := newOrch(t, config.DefaultConfig(), db, nil)

	sctx := &search.SecurityContext{UserID: "u1", UserRole: "analyst"}
	_, err := o.SecureSearch(context.Background(), "asthma", sctx, nil)
	require.ErrorIs(t, err, search.ErrGovernanceNotConfigured)
	assert.False(t, o.HasGovernance())
}

func TestOrchestrator_SecureSearchFiltersRegions(t *testing.T) {
	t.Parallel()

	db, _ := newBackends(t)
	db.EXPECT().Search(gomock.Any(), "asthma", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
			// The row filter is pushed down as a backend hint.
			assert.Equal(t, []string{"NE"}, opts.Filters.Extra[search.FilterAllowedRegions])
			return []*search.SearchResult{
				patientRow("h-1", "123-45-6789", "NE"),
				patientRow("h-2", "999-88-7777", "SW"),
			}, nil
		})

	engine := healthcareEngine(t)
	o := newOrch(t, config.DefaultConfig(), db, nil, WithGovernance(engine))

	sctx := &search.SecurityContext{
		UserID:         "u2",
		UserRole:       "business_user",
		AllowedRegions: []string{"NE"},
	}
	resp, err := o.SecureSearch(context.Background(), "asthma", sctx, healthcareOptions())
	require.NoError(t, err)

	// The SW row is dropped even though the backend returned it.
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "h-1", resp.Results[0].ID)

	_, ok := resp.Results[0].MetadataString("ssn")
	assert.False(t, ok, "redact_full must null the value")
	assert.Equal(t, []string{"ssn"}, resp.MaskedFields)
}

func TestOrchestrator_SecureSearchScopesClinicians(t *testing.T) {
	t.Parallel()

	mine := patientRow("h-1", "123-45-6789", "NE")
	mine.Metadata["clinician_id"] = "clin-7"
	other := patientRow("h-2", "999-88-7777", "NE")
	other.Metadata["clinician_id"] = "clin-9"

	db, _ := newBackends(t)
	db.EXPECT().Search(gomock.Any(), "asthma", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts *search.SearchOptions) ([]*search.SearchResult, error) {
			assert.Equal(t, "clin-7", opts.Filters.Extra[search.FilterClinicianID])
			return []*search.SearchResult{mine, other}, nil
		})

	engine := healthcareEngine(t)
	o := newOrch(t, config.DefaultConfig(), db, nil, WithGovernance(engine))

	sctx := &search.SecurityContext{UserID: "clin-7", UserRole: "clinician"}
	resp, err := o.SecureSearch(context.Background(), "asthma", sctx, healthcareOptions())
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "h-1", resp.Results[0].ID)
	assert.Empty(t, resp.MaskedFields)
}

func TestOrchestrator_SecureSearchAuditsTimeout(t *testing.T) {
	t.Parallel()

	db, _ := newBackends(t)
	db.EXPECT().Search(gomock.Any(), "slow", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ *search.SearchOptions) ([]*search.SearchResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	engine := healthcareEngine(t)
	o := newOrch(t, config.DefaultConfig(), db, nil, WithGovernance(engine))

	opts := healthcareOptions()
	opts.Timeout = 50 * time.Millisecond

	sctx := &search.SecurityContext{UserID: "u1", UserRole: "analyst"}
	_, err := o.SecureSearch(context.Background(), "slow", sctx, opts)
	require.ErrorIs(t, err, search.ErrSearchTimeout)

	assert.Equal(t, 1, engine.AuditLen())
}
