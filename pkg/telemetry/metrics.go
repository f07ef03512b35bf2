// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry exposes the facade's Prometheus instruments.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prism"

// Search outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)

// Metrics holds the orchestrator's instruments. A nil *Metrics is a valid
// no-op recorder so callers never branch on telemetry being enabled.
type Metrics struct {
	// SearchesTotal counts searches by strategy and outcome.
	SearchesTotal *prometheus.CounterVec

	// CacheHitsTotal counts searches answered from the cache backend.
	CacheHitsTotal prometheus.Counter

	// BackendErrorsTotal counts backend call failures by backend name.
	BackendErrorsTotal *prometheus.CounterVec

	// SearchDuration observes end-to-end search latency by strategy.
	SearchDuration *prometheus.HistogramVec

	// BreakerState reports each breaker's state (0 closed, 1 half-open,
	// 2 open).
	BreakerState *prometheus.GaugeVec
}

// NewMetrics registers the instruments on reg. Tests pass an isolated
// prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Search requests by strategy and outcome.",
		}, []string{"strategy", "outcome"}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "cache_hits_total",
			Help:      "Searches answered from the cache backend.",
		}),

		BackendErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Backend call failures by backend name.",
		}, []string{"backend"}),

		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end search latency by strategy.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state per backend (0 closed, 1 half-open, 2 open).",
		}, []string{"backend"}),
	}
}

// RecordSearch counts one finished search and observes its latency.
func (m *Metrics) RecordSearch(strategy, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(strategy, outcome).Inc()
	m.SearchDuration.WithLabelValues(strategy).Observe(seconds)
}

// RecordCacheHit counts one cache-answered search.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// RecordBackendError counts one backend failure.
func (m *Metrics) RecordBackendError(backend string) {
	if m == nil {
		return
	}
	m.BackendErrorsTotal.WithLabelValues(backend).Inc()
}

// SetBreakerState mirrors a breaker state onto the gauge.
func (m *Metrics) SetBreakerState(backend, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	m.BreakerState.WithLabelValues(backend).Set(v)
}
