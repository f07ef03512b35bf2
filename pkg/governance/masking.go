// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/prismsearch/prism/pkg/search"
)

// MaskKind names a column-masking transformation.
type MaskKind string

// Supported mask kinds.
const (
	MaskRedactFull MaskKind = "redact_full"
	MaskRedactPart MaskKind = "redact_part"
	MaskHash       MaskKind = "hash"
	MaskTokenize   MaskKind = "tokenize"
	MaskInitials   MaskKind = "initials"
	MaskYearOnly   MaskKind = "year_only"
	MaskYYYYMM     MaskKind = "yyyy_mm"
	MaskCityOnly   MaskKind = "city_only"
	MaskNull       MaskKind = "null"
	MaskNone       MaskKind = "none"
)

// DefaultRedactKeep is how many trailing characters redact_part preserves
// when the policy does not say otherwise.
const DefaultRedactKeep = 4

// maskedFieldsKey marks a result as already masked and records which fields
// were rewritten. Re-masking a marked result is a no-op, which makes the
// governance pass idempotent.
const maskedFieldsKey = "masked_fields"

// maskSpec is one parsed column_masks entry.
type maskSpec struct {
	kind MaskKind
	keep int
}

var redactPartForm = regexp.MustCompile(`^redact_part\(keep=(\d+)\)$`)

// parseMaskSpec parses a column_masks value such as "hash" or
// "redact_part(keep=6)".
func parseMaskSpec(s string) (maskSpec, error) {
	if m := redactPartForm.FindStringSubmatch(s); m != nil {
		keep, err := strconv.Atoi(m[1])
		if err != nil || keep < 0 {
			return maskSpec{}, fmt.Errorf("%w: invalid redact_part keep %q", search.ErrInvalidPolicy, m[1])
		}
		return maskSpec{kind: MaskRedactPart, keep: keep}, nil
	}

	switch MaskKind(s) {
	case MaskRedactFull, MaskHash, MaskTokenize, MaskInitials,
		MaskYearOnly, MaskYYYYMM, MaskCityOnly, MaskNull, MaskNone:
		return maskSpec{kind: MaskKind(s)}, nil
	case MaskRedactPart:
		return maskSpec{kind: MaskRedactPart, keep: DefaultRedactKeep}, nil
	default:
		return maskSpec{}, fmt.Errorf("%w: unknown mask kind %q", search.ErrInvalidPolicy, s)
	}
}

// ValidateMaskSpec reports whether s names a supported mask.
func ValidateMaskSpec(s string) error {
	_, err := parseMaskSpec(s)
	return err
}

// Masker applies column masks to search results. It owns the process-wide
// token table used by the tokenize mask.
type Masker struct {
	tokens *tokenTable
}

// NewMasker creates a Masker whose token table holds at most tokenCapacity
// entries (DefaultTokenTableSize when non-positive).
func NewMasker(tokenCapacity int) *Masker {
	return &Masker{tokens: newTokenTable(tokenCapacity)}
}

// MaskResults applies the column masks to every result and returns the
// masked copies plus the sorted list of masked field names. Inputs are never
// mutated. Results already carrying the masked marker pass through
// unchanged.
func (m *Masker) MaskResults(results []*search.SearchResult, masks map[string]string) ([]*search.SearchResult, []string, error) {
	if len(masks) == 0 {
		return results, nil, nil
	}

	specs := make(map[string]maskSpec, len(masks))
	fields := make([]string, 0, len(masks))
	for field, raw := range masks {
		spec, err := parseMaskSpec(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("mask for field %q: %w", field, err)
		}
		specs[field] = spec
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make([]*search.SearchResult, len(results))
	for i, r := range results {
		if _, done := r.Metadata[maskedFieldsKey]; done {
			out[i] = r
			continue
		}

		masked := r.Clone()
		for _, field := range fields {
			var current any
			if masked.Metadata != nil {
				current = masked.Metadata[field]
			}
			value := m.apply(specs[field], current)
			masked.SetMetadata(field, value)

			// The display title mirrors the governed name column; keep them
			// consistent so a masked name cannot leak through the title.
			if field == "name" || field == "title" {
				if s, ok := value.(string); ok {
					masked.Title = s
				} else if value == nil {
					masked.Title = ""
				}
			}
		}
		masked.SetMetadata(maskedFieldsKey, fields)
		out[i] = masked
	}

	return out, fields, nil
}

// apply rewrites one value. Nil values stay nil except for the
// unconditionally nulling kinds.
func (m *Masker) apply(spec maskSpec, value any) any {
	switch spec.kind {
	case MaskRedactFull, MaskNull, MaskNone:
		return nil
	case MaskRedactPart:
		return redactPart(value, spec.keep)
	case MaskHash:
		return hashValue(value)
	case MaskTokenize:
		if value == nil {
			return nil
		}
		return m.tokens.token(stringify(value))
	case MaskInitials:
		return initialsOf(value)
	case MaskYearOnly:
		return prefixOf(value, 4)
	case MaskYYYYMM:
		return prefixOf(value, 7)
	case MaskCityOnly:
		return cityOnly(value)
	default:
		return value
	}
}

// stringify renders a value the way it would appear unmasked.
func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// redactPart keeps the last keep characters and stars the rest. Empty and
// nil values pass through.
func redactPart(value any, keep int) any {
	if value == nil {
		return nil
	}
	s := stringify(value)
	if s == "" {
		return value
	}
	runes := []rune(s)
	if len(runes) <= keep {
		return s
	}
	return strings.Repeat("*", len(runes)-keep) + string(runes[len(runes)-keep:])
}

// hashValue is the first 16 hex characters of SHA-256 over the stringified
// value.
func hashValue(value any) any {
	if value == nil {
		return nil
	}
	sum := sha256.Sum256([]byte(stringify(value)))
	return hex.EncodeToString(sum[:])[:16]
}

// initialsOf reduces a name to the uppercase first letter of each
// whitespace-separated word.
func initialsOf(value any) any {
	if value == nil {
		return nil
	}
	s := stringify(value)
	if s == "" {
		return value
	}
	var b strings.Builder
	for _, word := range strings.Fields(s) {
		r := []rune(word)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}

// prefixOf truncates the stringified value to n characters; shorter values
// pass through stringified.
func prefixOf(value any, n int) any {
	if value == nil {
		return nil
	}
	s := stringify(value)
	if s == "" {
		return value
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// cityOnly keeps the segment after the last comma, trimmed. Values without a
// comma pass through untouched.
func cityOnly(value any) any {
	if value == nil {
		return nil
	}
	s := stringify(value)
	idx := strings.LastIndex(s, ",")
	if idx < 0 {
		return value
	}
	return strings.TrimSpace(s[idx+1:])
}
