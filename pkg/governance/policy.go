// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/prismsearch/prism/pkg/search"
)

// RowFilter is a role's row-level predicate. Policy files may write it as a
// string expression or as a bare YAML boolean; both forms normalize to a
// string here.
type RowFilter string

// UnmarshalJSON accepts both the string and boolean filter forms.
func (f *RowFilter) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = RowFilter(s)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("row_filter must be a string or boolean, got %s", string(data))
	}
	if b {
		*f = "true"
	} else {
		*f = "false"
	}
	return nil
}

// RolePolicy is the governance policy for one role: a row-level filter plus
// per-column masks.
type RolePolicy struct {
	// ID is the role name the policy applies to.
	ID string `json:"id"`

	// RowFilter is the row-level predicate evaluated against each result.
	RowFilter RowFilter `json:"row_filter"`

	// ColumnMasks maps field names to mask kinds (see parseMaskSpec).
	ColumnMasks map[string]string `json:"column_masks,omitempty"`
}

// Policy is the full governance policy for one dataset.
type Policy struct {
	Roles []*RolePolicy `json:"roles"`
}

// Role returns the policy for a role id, or nil when the role has no entry.
func (p *Policy) Role(id string) *RolePolicy {
	for _, r := range p.Roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Validate checks role ids and mask specs. All failures wrap
// ErrInvalidPolicy so loaders surface one sentinel.
func (p *Policy) Validate() error {
	seen := make(map[string]struct{}, len(p.Roles))
	for i, r := range p.Roles {
		if r == nil {
			return fmt.Errorf("%w: role %d is empty", search.ErrInvalidPolicy, i)
		}
		if r.ID == "" {
			return fmt.Errorf("%w: role %d has no id", search.ErrInvalidPolicy, i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate role %q", search.ErrInvalidPolicy, r.ID)
		}
		seen[r.ID] = struct{}{}

		for field, spec := range r.ColumnMasks {
			if err := ValidateMaskSpec(spec); err != nil {
				return fmt.Errorf("role %q, field %q: %w", r.ID, field, err)
			}
		}
	}
	return nil
}

// defaultRolePolicy is applied when a role has no policy entry: every row
// visible, no masks.
func defaultRolePolicy() *RolePolicy {
	return &RolePolicy{RowFilter: "true", ColumnMasks: map[string]string{}}
}

// LoadPolicy loads one dataset policy from a file. It supports both JSON
// and YAML formats, detected by file extension.
func LoadPolicy(path string) (*Policy, error) {
	// Validate and clean the path to prevent directory traversal attacks
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("path contains directory traversal elements: %s", path)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy Policy
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".yaml", ".yml":
		// Convert YAML to JSON first for consistent handling
		jsonData, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML policy file %s: %w", cleanPath, err)
		}
		if err := json.Unmarshal(jsonData, &policy); err != nil {
			return nil, fmt.Errorf("failed to parse policy %s: %w", cleanPath, err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &policy); err != nil {
			return nil, fmt.Errorf("failed to parse JSON policy file %s: %w", cleanPath, err)
		}
	default:
		return nil, fmt.Errorf("unsupported policy format: %s (supported formats: .json, .yaml, .yml)", ext)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &policy, nil
}

// PolicySet holds loaded policies keyed by dataset name.
type PolicySet map[string]*Policy

// LoadPolicyDir loads every policy file in dir, keyed by file stem, so
// `healthcare.yaml` governs the `healthcare` dataset. Non-policy files are
// skipped.
func LoadPolicyDir(dir string) (PolicySet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy directory: %w", err)
	}

	set := make(PolicySet)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		policy, err := LoadPolicy(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", name, err)
		}
		set[strings.TrimSuffix(name, ext)] = policy
	}

	return set, nil
}
