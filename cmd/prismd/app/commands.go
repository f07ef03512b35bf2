// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the prismd command-line
// application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prismsearch/prism/pkg/api"
	"github.com/prismsearch/prism/pkg/backends/postgres"
	"github.com/prismsearch/prism/pkg/backends/rediscache"
	"github.com/prismsearch/prism/pkg/config"
	"github.com/prismsearch/prism/pkg/governance"
	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
	"github.com/prismsearch/prism/pkg/search/orchestrator"
	"github.com/prismsearch/prism/pkg/seeding"
	"github.com/prismsearch/prism/pkg/telemetry"
)

// closeTimeout bounds backend cleanup after the server stops.
const closeTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:               "prismd",
	DisableAutoGenTag: true,
	Short:             "Prism - a universal search façade over database and cache backends",
	Long: `Prism fronts a PostgreSQL corpus with an optional Redis cache behind one
search API. It provides:

- Strategy selection between cache, database, and hybrid execution
- Per-backend circuit breakers with automatic recovery
- Merged hybrid results (union, intersection, weighted)
- Row- and column-level governance with masking and auditing
- Dataset seeding with background job tracking
- Prometheus metrics and structured logging`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the prismd CLI.
func NewRootCmd() *cobra.Command {
	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to prism configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	viper.SetEnvPrefix("PRISM")
	viper.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

// newServeCmd creates the serve command for starting the search façade.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the prism search façade",
		Long: `Start the HTTP server fronting the configured backends.

The server reads the configuration file specified by --config, connects the
database backend (running pending migrations), attaches the Redis cache when
configured, and serves the search API until interrupted.`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "", "Listen host (overrides configuration)")
	if err := viper.BindPFlag("host", cmd.Flags().Lookup("host")); err != nil {
		logger.Errorf("Error binding host flag: %v", err)
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides configuration)")
	if err := viper.BindPFlag("port", cmd.Flags().Lookup("port")); err != nil {
		logger.Errorf("Error binding port flag: %v", err)
	}

	return cmd
}

// newSeedCmd creates the seed command for loading synthetic datasets.
func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a synthetic dataset into the database backend",
		Long: `Generate synthetic documents and upsert them into the database backend.

Seeding is idempotent: the same dataset and row count produce the same row
ids, so re-running updates rows in place.`,
		RunE: runSeed,
	}

	cmd.Flags().String("dataset", "healthcare", "Dataset to seed")
	if err := viper.BindPFlag("dataset", cmd.Flags().Lookup("dataset")); err != nil {
		logger.Errorf("Error binding dataset flag: %v", err)
	}
	cmd.Flags().Int("rows", 1000, "Number of rows to generate")
	if err := viper.BindPFlag("rows", cmd.Flags().Lookup("rows")); err != nil {
		logger.Errorf("Error binding rows flag: %v", err)
	}

	return cmd
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information for prismd",
		Run: func(_ *cobra.Command, _ []string) {
			// Version information will be injected at build time
			logger.Infof("prismd version: %s", getVersion())
		},
	}
}

// getVersion returns the version string (will be set at build time)
func getVersion() string {
	// This will be replaced with actual version info using ldflags
	return "dev"
}

// loadConfig reads the --config file (defaults when absent) and applies
// environment overrides.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path != "" {
		logger.Infof("Loading configuration from: %s", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// newDatabase builds and connects the PostgreSQL backend, running pending
// migrations.
func newDatabase(ctx context.Context, cfg *config.Config) (*postgres.Provider, error) {
	db := postgres.New(postgres.Config{
		URL:            cfg.Database.URL,
		MinConns:       cfg.Database.MinConns,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout.Std(),
	})
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect database backend: %w", err)
	}
	return db, nil
}

// runServe implements the serve command logic.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host := viper.GetString("host"); host != "" {
		cfg.Host = host
	}
	if port := viper.GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := newDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("Database backend connected")

	// The cache is optional: a connect failure at startup downgrades the
	// façade to database-only instead of refusing to start.
	var cache search.CacheBackend
	if cfg.Cache.Active() {
		rc, err := rediscache.New(cfg.Cache.URL, cfg.Cache.Prefix)
		if err != nil {
			return fmt.Errorf("failed to build cache backend: %w", err)
		}
		if err := rc.Connect(ctx); err != nil {
			logger.Warnf("Cache backend unavailable, continuing without cache: %v", err)
		} else {
			cache = rc
			logger.Info("Cache backend connected")
		}
	}

	// Policy problems are fatal at startup; a façade silently serving
	// unmasked rows is worse than one that will not start.
	var gov *governance.Engine
	if cfg.Governance.Active() && cfg.Governance.PolicyDir != "" {
		gov, err = governance.New(governance.Config{
			PolicyDir:     cfg.Governance.PolicyDir,
			AuditLogSize:  cfg.Governance.AuditLogSize,
			TokenizerSize: cfg.Governance.TokenizerSize,
		})
		if err != nil {
			return fmt.Errorf("failed to load governance policies: %w", err)
		}
		logger.Infof("Governance enabled with policies from %s", cfg.Governance.PolicyDir)
	}

	var orchOpts []orchestrator.Option
	var gatherer prometheus.Gatherer
	if cfg.Telemetry.Active() {
		registry := prometheus.NewRegistry()
		orchOpts = append(orchOpts, orchestrator.WithMetrics(telemetry.NewMetrics(registry)))
		gatherer = registry
	}
	if gov != nil {
		orchOpts = append(orchOpts, orchestrator.WithGovernance(gov))
	}

	orch, err := orchestrator.New(cfg, db, cache, orchOpts...)
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	var seedOpts []seeding.Option
	if cache != nil {
		seedOpts = append(seedOpts, seeding.WithCache(cache))
	}
	seeder := seeding.New(db, seedOpts...)

	serveErr := api.Serve(ctx, cfg.ListenAddr(), api.Deps{
		Orchestrator: orch,
		Seeder:       seeder,
		Datasets:     db,
		Governance:   gov,
		Metrics:      gatherer,
		Debug:        viper.GetBool("debug"),
	})

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := orch.Close(closeCtx); err != nil {
		logger.Warnf("Error closing backends: %v", err)
	}

	return serveErr
}

// runSeed implements the seed command logic.
func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := newDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := db.Disconnect(closeCtx); err != nil {
			logger.Warnf("Error disconnecting database: %v", err)
		}
	}()

	req := seeding.Request{
		Dataset: viper.GetString("dataset"),
		Rows:    viper.GetInt("rows"),
	}
	logger.Infof("Seeding %d rows into dataset %q", req.Rows, req.Dataset)

	job, err := seeding.New(db).Seed(ctx, req)
	if err != nil {
		return err
	}

	logger.Infof("Seeded %d rows into dataset %q in %s",
		job.Completed, job.Dataset, job.FinishedAt.Sub(job.StartedAt))
	return nil
}
