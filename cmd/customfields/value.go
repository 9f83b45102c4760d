// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/customfields/customfields/internal/field"
)

func newValueCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Read and write custom field values of an entity",
	}
	cmd.AddCommand(newValueGetCmd(g))
	cmd.AddCommand(newValueSetCmd(g))
	return cmd
}

func newValueGetCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity_type> <entity_id> [field]",
		Short: "Show the stored values of an entity",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := field.EntityRef{Type: args[0], ID: args[1]}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				values, err := a.svc.ValuesOf(ctx, entity)
				if err != nil {
					return err
				}
				if len(args) == 3 {
					for _, v := range values {
						if def := v.Definition(); def != nil && def.Name == args[2] {
							return render(cmd.OutOrStdout(), g.output, newValueView(v))
						}
					}
					return oops.Code("VALUE_NOT_FOUND").
						With("entity", entity.String()).
						With("field", args[2]).
						Wrap(field.ErrNotFound)
				}
				views := make([]valueView, 0, len(values))
				for _, v := range values {
					views = append(views, newValueView(v))
				}
				return render(cmd.OutOrStdout(), g.output, views)
			})
		},
	}
}

func newValueSetCmd(g *globalOptions) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "set <entity_type> <entity_id> <field> <value>",
		Short: "Cast, validate and store a value",
		Long: `Cast, validate and store a value. The value is parsed as YAML, so
"42" is a number, "[a, b]" a list and "null" clears the field.`,
		Example: `  customfields value set Author a1 rating 4
  customfields value set Book b7 tags '[classic, novel]' --scope shelf_a`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := field.EntityRef{Type: args[0], ID: args[1]}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				v, err := a.svc.PutValue(ctx, entity, optionalString(scope), args[2], parseValue(args[3]))
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), g.output, newValueView(v))
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "the entity's field scope")
	return cmd
}
