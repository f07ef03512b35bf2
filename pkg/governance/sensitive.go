// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import "regexp"

// RedactedPlaceholder replaces sensitive matches in logged or audited text.
const RedactedPlaceholder = "[REDACTED]"

// Patterns that must never reach log output or audit storage verbatim.
// Detection is used to redact, never to reject a query.
var (
	ssnPattern   = regexp.MustCompile(`\d{3}-\d{2}-\d{4}`)
	phonePattern = regexp.MustCompile(`\d{3}-\d{3}-\d{4}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

var sensitivePatterns = []*regexp.Regexp{ssnPattern, phonePattern, emailPattern}

// Redact replaces every sensitive match in s with RedactedPlaceholder.
func Redact(s string) string {
	for _, p := range sensitivePatterns {
		s = p.ReplaceAllString(s, RedactedPlaceholder)
	}
	return s
}

// ContainsSensitive reports whether s matches any sensitive pattern.
func ContainsSensitive(s string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
