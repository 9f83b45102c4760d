// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/customfields/customfields/internal/field"
	"github.com/customfields/customfields/internal/finder/expr"
)

// explainView is one condition's predicate over field_values rows. Matching
// entities have a row satisfying every condition's predicate.
type explainView struct {
	Field string `json:"field" yaml:"field"`
	SQL   string `json:"sql" yaml:"sql"`
	Args  []any  `json:"args" yaml:"args"`
}

func newQueryCmd(g *globalOptions) *cobra.Command {
	var (
		scope   string
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "query <entity_type> <filter>...",
		Short: "Find entities whose custom fields match a filter",
		Long: `Find entities whose custom fields match every condition of a filter
expression. Conditions are joined with "and"; operators may be symbols
such as ">=" and "|=" or names such as "gteq" and "is not".`,
		Example: `  customfields query Author 'rating >= 4 and nickname ^* "the"'
  customfields query Book tags '|=' '[classic]' --explain`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conds, err := expr.Parse(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			filters := make([]field.Filter, 0, len(conds))
			for _, c := range conds {
				filters = append(filters, field.Filter{Field: c.Field, Operator: string(c.Operator), Value: c.Value})
			}
			entityType := args[0]

			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if explain {
					return explainFilters(ctx, cmd, g, a, entityType, optionalString(scope), filters)
				}
				ids, err := a.svc.FindEntityIDs(ctx, entityType, optionalString(scope), filters...)
				if err != nil {
					return err
				}
				if ids == nil {
					ids = []string{}
				}
				return render(cmd.OutOrStdout(), g.output, ids)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "resolve field names in this scope")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the SQL predicate instead of running it")
	return cmd
}

func explainFilters(ctx context.Context, cmd *cobra.Command, g *globalOptions, a *app, entityType string, scope *string, filters []field.Filter) error {
	views := make([]explainView, 0, len(filters))
	for _, f := range filters {
		p, err := a.svc.Where(ctx, entityType, scope, f)
		if err != nil {
			return err
		}
		views = append(views, explainView{Field: f.Field, SQL: p.Render(0), Args: p.Args})
	}
	return render(cmd.OutOrStdout(), g.output, views)
}
