// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/internal/field"
	"github.com/customfields/customfields/internal/logging"
)

// globalOptions holds the persistent flags that are not configuration keys.
type globalOptions struct {
	configFile  string
	output      string
	metricsFile string
}

// NewRootCmd creates the root command for the customfields CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "customfields",
		Short: "Manage typed custom fields on application entities",
		Long: `customfields administers runtime-defined, typed custom fields stored
next to an application's own tables: field definitions per entity type,
their per-entity values, and queries over those values.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/customfields/config.yaml)")
	pf.StringVarP(&g.output, "output", "o", formatYAML, "output format: yaml or json")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.String("database-url", "", "PostgreSQL connection URL (default $DATABASE_URL)")
	pf.String("log-format", logging.FormatJSON, "log format: json or text")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.Int("datetime-precision", cast.MaxDateTimePrecision, "sub-second digits kept for datetime fields")
	pf.Int("backfill-batch-size", field.DefaultBackfillBatchSize, "entities per backfill transaction")

	cmd.AddCommand(newMigrateCmd(g))
	cmd.AddCommand(newFieldCmd(g))
	cmd.AddCommand(newValueCmd(g))
	cmd.AddCommand(newQueryCmd(g))
	cmd.AddCommand(newTypesCmd(g))

	return cmd
}
