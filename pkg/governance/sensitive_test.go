// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsSensitive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "ssn", input: "patient ssn 123-45-6789", want: true},
		{name: "phone", input: "call 555-123-4567", want: true},
		{name: "email", input: "contact john@example.com", want: true},
		{name: "plain query", input: "asthma patients in NE", want: false},
		{name: "partial ssn", input: "123-45", want: false},
		{name: "empty", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ContainsSensitive(tt.input))
		})
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ssn replaced", input: "ssn 123-45-6789 on file", want: "ssn [REDACTED] on file"},
		{name: "email replaced", input: "mail john@example.com now", want: "mail [REDACTED] now"},
		{name: "multiple matches", input: "123-45-6789 and 987-65-4321", want: "[REDACTED] and [REDACTED]"},
		{name: "clean string unchanged", input: "asthma patients", want: "asthma patients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Redact(tt.input))
		})
	}
}
