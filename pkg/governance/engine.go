// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance applies data governance to search results before they
// cross the trust boundary: row-level security, column masking, sensitive
// pattern redaction, and audit.
package governance

import (
	"context"
	"fmt"
	"sync"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
)

// DefaultDataset is the policy key used when a query names no dataset.
const DefaultDataset = "default"

// Compliance flags attached to audit entries.
const (
	FlagRowLevelSecurity = "row_level_security"
	FlagColumnMasking    = "column_masking"
	FlagSensitiveQuery   = "sensitive_query"
)

// Config configures the governance engine.
type Config struct {
	// PolicyDir is scanned for per-dataset policy files at construction.
	PolicyDir string

	// Policies preloads dataset policies; entries override files from
	// PolicyDir with the same dataset name.
	Policies PolicySet

	// AuditLogSize bounds the in-memory audit store
	// (DefaultAuditLogSize when non-positive).
	AuditLogSize int

	// TokenizerSize bounds the tokenize mask's token table
	// (DefaultTokenTableSize when non-positive).
	TokenizerSize int

	// Sinks receive every audit entry in addition to the in-memory store.
	// Empty means one SlogSink writing to stdout.
	Sinks []AuditSink

	// DefaultDataset overrides DefaultDataset as the fallback policy key.
	DefaultDataset string
}

// Engine is the governance layer: it authorizes callers, narrows queries
// and results per the caller's row filter, masks columns, and audits every
// governed search.
type Engine struct {
	mu       sync.RWMutex
	policies PolicySet

	masker         *Masker
	store          *MemoryStore
	sinks          []AuditSink
	defaultDataset string
}

// New builds an engine from cfg, loading PolicyDir when set.
func New(cfg Config) (*Engine, error) {
	policies := make(PolicySet)
	if cfg.PolicyDir != "" {
		loaded, err := LoadPolicyDir(cfg.PolicyDir)
		if err != nil {
			return nil, err
		}
		policies = loaded
	}
	for dataset, policy := range cfg.Policies {
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("policy %s: %w", dataset, err)
		}
		policies[dataset] = policy
	}

	sinks := cfg.Sinks
	if len(sinks) == 0 {
		sinks = []AuditSink{NewSlogSink(nil)}
	}

	defaultDataset := cfg.DefaultDataset
	if defaultDataset == "" {
		defaultDataset = DefaultDataset
	}

	return &Engine{
		policies:       policies,
		masker:         NewMasker(cfg.TokenizerSize),
		store:          NewMemoryStore(cfg.AuditLogSize),
		sinks:          sinks,
		defaultDataset: defaultDataset,
	}, nil
}

// Authorize rejects callers without an identity. Denials wrap
// ErrAccessDenied.
func (*Engine) Authorize(sctx *search.SecurityContext) error {
	if sctx == nil {
		return fmt.Errorf("%w: missing security context", search.ErrAccessDenied)
	}
	if sctx.UserID == "" {
		return fmt.Errorf("%w: missing user id", search.ErrAccessDenied)
	}
	if sctx.UserRole == "" {
		return fmt.Errorf("%w: missing user role", search.ErrAccessDenied)
	}
	return nil
}

// Dataset resolves which dataset's policy governs a query. Callers name a
// dataset through the "dataset" extra filter; absent that, the engine's
// default applies.
func (e *Engine) Dataset(opts *search.SearchOptions) string {
	if opts != nil && opts.Filters != nil {
		if v, ok := opts.Filters.Extra[search.FilterDataset]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return e.defaultDataset
}

// HasPolicy reports whether a dataset has an explicit policy.
func (e *Engine) HasPolicy(dataset string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.policies[dataset]
	return ok
}

// SetPolicy installs or replaces a dataset policy at runtime.
func (e *Engine) SetPolicy(dataset string, policy *Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[dataset] = policy
	return nil
}

// rolePolicy picks the governing role policy, falling back to allow-all
// with no masks when the dataset or role has no entry.
func (e *Engine) rolePolicy(dataset, role string) *RolePolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policy, ok := e.policies[dataset]
	if !ok {
		return defaultRolePolicy()
	}
	if rp := policy.Role(role); rp != nil {
		return rp
	}
	return defaultRolePolicy()
}

// ApplyRowSecurity returns options extended with backend filter hints for
// the caller's row filter. The input options are never mutated. Results
// still pass through FilterResults afterwards; hints only let backends
// narrow the scan.
func (e *Engine) ApplyRowSecurity(opts *search.SearchOptions, dataset string, sctx *search.SecurityContext) *search.SearchOptions {
	if opts == nil {
		opts = search.DefaultOptions()
	}
	rp := e.rolePolicy(dataset, sctx.UserRole)
	hints := filterHints(rp.RowFilter, sctx)
	if len(hints) == 0 {
		return opts
	}

	out := opts.Clone()
	if out.Filters == nil {
		out.Filters = &search.SearchFilters{}
	}
	if out.Filters.Extra == nil {
		out.Filters.Extra = make(map[string]any, len(hints))
	}
	for k, v := range hints {
		out.Filters.Extra[k] = v
	}
	return out
}

// FilterResults drops rows the caller's row filter denies.
func (e *Engine) FilterResults(results []*search.SearchResult, dataset string, sctx *search.SecurityContext) []*search.SearchResult {
	rp := e.rolePolicy(dataset, sctx.UserRole)
	pred := compileRowFilter(rp.RowFilter, sctx)

	out := make([]*search.SearchResult, 0, len(results))
	for _, r := range results {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// MaskResults applies the caller's column masks and returns the masked
// copies plus the sorted masked field names.
func (e *Engine) MaskResults(results []*search.SearchResult, dataset string, sctx *search.SecurityContext) ([]*search.SearchResult, []string, error) {
	rp := e.rolePolicy(dataset, sctx.UserRole)
	return e.masker.MaskResults(results, rp.ColumnMasks)
}

// AuditSearch records one governed search, success or failure, and returns
// the audit id. Sink failures are logged and do not fail the search.
func (e *Engine) AuditSearch(ctx context.Context, query string, sctx *search.SecurityContext, a AuditOutcome) string {
	if a.Dataset == "" {
		a.Dataset = e.defaultDataset
	}
	entry := NewAuditEntry(ActionSearch, a.Dataset)
	entry.Query = query
	if ContainsSensitive(query) {
		entry.Query = RedactedPlaceholder
	}
	entry.ResultCount = a.ResultCount
	entry.SearchTimeMs = a.SearchTimeMs
	entry.Success = a.Success
	entry.ErrorMessage = a.Error

	if sctx != nil {
		entry.UserID = sctx.UserID
		entry.UserRole = sctx.UserRole
		entry.SessionID = sctx.SessionID
		entry.IPAddress = sctx.IPAddress
		entry.UserAgent = sctx.UserAgent
		entry.InstitutionID = sctx.InstitutionID
	}

	entry.SensitiveDataAccessed = ContainsSensitive(query) || len(a.MaskedFields) > 0

	entry.ComplianceFlags = append(entry.ComplianceFlags, FlagRowLevelSecurity)
	if len(a.MaskedFields) > 0 {
		entry.ComplianceFlags = append(entry.ComplianceFlags, FlagColumnMasking)
	}
	if ContainsSensitive(query) {
		entry.ComplianceFlags = append(entry.ComplianceFlags, FlagSensitiveQuery)
	}

	if err := e.store.Record(ctx, entry); err != nil {
		logger.Errorf("Failed to store audit entry %s: %v", entry.ID, err)
	}
	for _, sink := range e.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			logger.Errorf("Audit sink failed for entry %s: %v", entry.ID, err)
		}
	}

	return entry.ID
}

// AuditOutcome carries the result of one governed search into AuditSearch.
type AuditOutcome struct {
	Dataset      string
	ResultCount  int
	SearchTimeMs int64
	Success      bool
	Error        string
	MaskedFields []string
}

// GetAuditEntry resolves an audit id returned by AuditSearch.
func (e *Engine) GetAuditEntry(id string) (*AuditEntry, bool) {
	return e.store.GetEntry(id)
}

// AuditLen reports how many audit entries the in-memory store retains.
func (e *Engine) AuditLen() int {
	return e.store.Len()
}
