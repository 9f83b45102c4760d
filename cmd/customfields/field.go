// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"context"
	"maps"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/customfields/customfields/internal/field"
)

func newFieldCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage custom field definitions",
	}
	cmd.AddCommand(newFieldDefineCmd(g))
	cmd.AddCommand(newFieldListCmd(g))
	cmd.AddCommand(newFieldShowCmd(g))
	cmd.AddCommand(newFieldUpdateCmd(g))
	cmd.AddCommand(newFieldDeleteCmd(g))
	return cmd
}

func newFieldDefineCmd(g *globalOptions) *cobra.Command {
	var (
		scope      string
		defaultArg string
		options    []string
	)
	cmd := &cobra.Command{
		Use:   "define <entity_type> <name> <type>",
		Short: "Create a field definition and backfill its default",
		Example: `  customfields field define Author rating integer --default 3 --option min=1 --option max=5
  customfields field define Book genre enum --option 'allowed_values=[fantasy, horror]' --scope shelf_a`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}
			in := field.CreateDefinitionInput{
				EntityType: args[0],
				Name:       args[1],
				TypeID:     args[2],
				Scope:      optionalString(scope),
				Options:    opts,
			}
			if cmd.Flags().Changed("default") {
				in.DefaultValue = parseValue(defaultArg)
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				def, err := a.svc.CreateDefinition(ctx, in)
				if def != nil {
					if rerr := render(cmd.OutOrStdout(), g.output, newDefinitionView(def)); rerr != nil {
						return rerr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "restrict the field to entities in this scope")
	cmd.Flags().StringVar(&defaultArg, "default", "", "default value, parsed as YAML")
	cmd.Flags().StringArrayVar(&options, "option", nil, "type option as key=value (repeatable)")
	return cmd
}

func newFieldListCmd(g *globalOptions) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "list <entity_type>",
		Short: "List field definitions of an entity type",
		Long: `List field definitions of an entity type. With --scope, lists the
definitions that apply in that scope, unscoped ones included.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				var (
					defs []*field.Definition
					err  error
				)
				if cmd.Flags().Changed("scope") {
					defs, err = a.svc.DefinitionsFor(ctx, args[0], optionalString(scope))
				} else {
					defs, err = a.svc.ListDefinitions(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), g.output, newDefinitionViews(defs))
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "only definitions applying in this scope")
	return cmd
}

func newFieldShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a field definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				def, err := a.svc.GetDefinition(ctx, id)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), g.output, newDefinitionView(def))
			})
		},
	}
}

func newFieldUpdateCmd(g *globalOptions) *cobra.Command {
	var (
		name       string
		scope      string
		clearScope bool
		defaultArg string
		options    []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a field definition's name, scope, default or options",
		Long: `Change a field definition. The type cannot change. Options given with
--option are merged onto the existing options; existing values are not
recast or revalidated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}
			if clearScope && cmd.Flags().Changed("scope") {
				return oops.Code("INVALID_ARGUMENT").Errorf("--scope and --clear-scope are mutually exclusive")
			}

			patch := field.DefinitionPatch{ClearScope: clearScope}
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("scope") {
				patch.Scope = &scope
			}
			if cmd.Flags().Changed("default") {
				patch.DefaultValue = parseValue(defaultArg)
				patch.SetDefault = true
			}

			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if opts != nil {
					current, err := a.svc.GetDefinition(ctx, id)
					if err != nil {
						return err
					}
					merged := current.Options.Clone()
					maps.Copy(merged, opts)
					patch.Options = merged
				}
				def, err := a.svc.UpdateDefinition(ctx, id, patch)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), g.output, newDefinitionView(def))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new field name")
	cmd.Flags().StringVar(&scope, "scope", "", "new scope")
	cmd.Flags().BoolVar(&clearScope, "clear-scope", false, "make the field apply in every scope")
	cmd.Flags().StringVar(&defaultArg, "default", "", "new default value, parsed as YAML")
	cmd.Flags().StringArrayVar(&options, "option", nil, "type option as key=value (repeatable)")
	return cmd
}

func newFieldDeleteCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a field definition and all of its values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if err := a.svc.DestroyDefinition(ctx, id); err != nil {
					return err
				}
				cmd.Printf("Deleted field definition %s\n", id)
				return nil
			})
		},
	}
}

func parseID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").With("id", s).Wrap(err)
	}
	return id, nil
}
