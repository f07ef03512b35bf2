// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package api contains the REST API for the prism search façade.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/prismsearch/prism/pkg/api/v1"
	"github.com/prismsearch/prism/pkg/governance"
	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search/orchestrator"
	"github.com/prismsearch/prism/pkg/seeding"
)

// Not sure if these values need to be configurable.
const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Deps carries the wired components the routers serve. Orchestrator is
// required; the rest degrade gracefully when nil.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Seeder       *seeding.Seeder
	Datasets     v1.DatasetStore
	Governance   *governance.Engine

	// Metrics enables the /metrics endpoint when set.
	Metrics prometheus.Gatherer

	// Debug echoes backend error detail in 500 bodies.
	Debug bool
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Router assembles the chi router over deps. Split from Serve so tests can
// exercise the full middleware stack without a listener.
func Router(deps Deps) (http.Handler, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
	)

	// A nil *governance.Engine must stay a nil interface for the router.
	var policies v1.PolicyChecker
	if deps.Governance != nil {
		policies = deps.Governance
	}

	routers := map[string]http.Handler{
		"/health":        v1.HealthRouter(deps.Orchestrator),
		"/api/v1/search": v1.SearchRouter(deps.Orchestrator, deps.Debug),
		"/api/v1/tables": v1.TablesRouter(deps.Datasets, policies),
	}
	if deps.Seeder != nil {
		routers["/api/v1/seed"] = v1.SeedRouter(deps.Seeder)
		routers["/api/v1/progress"] = v1.ProgressRouter(deps.Seeder)
	}
	if deps.Metrics != nil {
		routers["/metrics"] = promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})
	}

	for prefix, router := range routers {
		r.Mount(prefix, router)
	}
	return r, nil
}

// Serve starts the server on the given address and serves the API until ctx
// is canceled. It is assumed that the caller sets up appropriate signal
// handling.
func Serve(ctx context.Context, address string, deps Deps) error {
	handler, err := Router(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}

	logger.Infof("Starting HTTP server on %s", listener.Addr())

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}
