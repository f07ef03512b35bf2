// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"time"

	"github.com/google/uuid"
)

// ClearanceLevel grades how sensitive a caller's view may be.
type ClearanceLevel string

// Clearance levels, least to most privileged.
const (
	ClearancePublic       ClearanceLevel = "public"
	ClearanceInternal     ClearanceLevel = "internal"
	ClearanceConfidential ClearanceLevel = "confidential"
	ClearanceRestricted   ClearanceLevel = "restricted"
)

// SecurityContext identifies the caller for governance decisions and audit.
// It crosses the trust boundary as request headers, never as a token; the
// façade sits behind an authenticating proxy.
type SecurityContext struct {
	UserID         string         `json:"user_id"`
	UserRole       string         `json:"user_role"`
	InstitutionID  string         `json:"institution_id,omitempty"`
	ClearanceLevel ClearanceLevel `json:"clearance_level,omitempty"`

	// SessionID correlates audit entries; EnsureSession generates one when
	// the caller did not supply it.
	SessionID string `json:"session_id,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// AllowedRegions feeds the "region in ${user.allowed_regions}"
	// row-filter form.
	AllowedRegions []string `json:"allowed_regions,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// EnsureSession fills SessionID and Timestamp if the caller left them empty.
func (c *SecurityContext) EnsureSession() {
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
}
