// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package search

import "time"

// BackendStatus represents the health state of a backend.
type BackendStatus string

const (
	// StatusHealthy indicates the backend is connected and serving searches
	// within the latency threshold.
	StatusHealthy BackendStatus = "healthy"

	// StatusDegraded indicates the backend responds but is slow or has lost
	// its search capability (for example a missing index extension).
	StatusDegraded BackendStatus = "degraded"

	// StatusUnhealthy indicates the backend is unreachable or failing probes.
	StatusUnhealthy BackendStatus = "unhealthy"
)

// LatencyUnknown marks a health status whose latency was not measured.
const LatencyUnknown int64 = -1

// HealthStatus is one backend health observation. The health cache keeps the
// last observation per backend and refreshes it on TTL expiry.
type HealthStatus struct {
	IsConnected       bool          `json:"is_connected"`
	IsSearchAvailable bool          `json:"is_search_available"`
	LatencyMs         int64         `json:"latency_ms"`
	MemoryUsage       string        `json:"memory_usage,omitempty"`
	KeyCount          int64         `json:"key_count,omitempty"`
	LastSync          *time.Time    `json:"last_sync,omitempty"`
	Errors            []string      `json:"errors,omitempty"`
	Status            BackendStatus `json:"status"`
}

// NewUnhealthyStatus builds the synthetic status used when a probe fails and
// no stale observation exists.
func NewUnhealthyStatus(reason string) *HealthStatus {
	return &HealthStatus{
		IsConnected:       false,
		IsSearchAvailable: false,
		LatencyMs:         LatencyUnknown,
		Errors:            []string{reason},
		Status:            StatusUnhealthy,
	}
}

// Healthy reports whether the backend can serve as a primary: connected,
// search available, and answering within the given latency bound.
func (h *HealthStatus) Healthy(maxLatencyMs int64) bool {
	return h != nil && h.IsConnected && h.IsSearchAvailable &&
		h.LatencyMs >= 0 && h.LatencyMs < maxLatencyMs
}
