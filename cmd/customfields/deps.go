// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/customfields/customfields/internal/config"
	"github.com/customfields/customfields/internal/field"
	"github.com/customfields/customfields/internal/field/postgres"
	"github.com/customfields/customfields/internal/fieldtype"
	"github.com/customfields/customfields/internal/logging"
	"github.com/customfields/customfields/internal/store"
	"github.com/customfields/customfields/internal/xdg"
)

// app holds what a data command needs: configuration, a pool and the
// field service built on it.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *fieldtype.Registry
	pool     *pgxpool.Pool
	svc      *field.Service
	metrics  *prometheus.Registry

	metricsFile string
}

// loadConfig reads the config file and flag overrides, then installs the
// configured logger as the default. Without --config, the XDG config file
// is used when present.
func loadConfig(cmd *cobra.Command, g *globalOptions) (*config.Config, *slog.Logger, error) {
	path := g.configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "customfields",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Output:  cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

func requireDatabaseURL(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database URL is required: set database_url, --database-url or %s", config.EnvDatabaseURL)
	}
	return nil
}

// openApp loads configuration, connects to the database and wires the
// field service.
func openApp(ctx context.Context, cmd *cobra.Command, g *globalOptions) (*app, error) {
	cfg, logger, err := loadConfig(cmd, g)
	if err != nil {
		return nil, err
	}
	if err := requireDatabaseURL(cfg); err != nil {
		return nil, err
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}

	pool, err := store.Open(ctx, cfg.DatabaseURL, store.ConnectOptions{Logger: logger})
	if err != nil {
		return nil, err
	}
	entities, err := postgres.NewEntityLister(pool, cfg.EntitySources())
	if err != nil {
		pool.Close()
		return nil, err
	}

	metrics := prometheus.NewRegistry()
	field.RegisterMetrics(metrics)

	svc := field.NewService(field.ServiceConfig{
		Registry:          reg,
		Definitions:       postgres.NewDefinitionRepository(pool),
		Values:            postgres.NewValueRepository(pool),
		Entities:          entities,
		Transactor:        postgres.NewTransactor(pool),
		BackfillBatchSize: cfg.BackfillBatchSize,
		Logger:            logger,
	})

	return &app{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		pool:        pool,
		svc:         svc,
		metrics:     metrics,
		metricsFile: g.metricsFile,
	}, nil
}

// Close releases the pool and writes the metrics file if one was requested.
func (a *app) Close() error {
	a.pool.Close()
	if a.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, a.metrics); err != nil {
		return oops.Code("METRICS_WRITE_FAILED").With("path", a.metricsFile).Wrap(err)
	}
	return nil
}

// withApp runs fn against an open app and closes it afterwards. Close
// failures are logged.
func withApp(cmd *cobra.Command, g *globalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, g)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("close failed", "error", cerr)
		}
	}()
	return fn(ctx, a)
}
