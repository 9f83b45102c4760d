// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/customfields/customfields/internal/fieldtype"
)

type typeView struct {
	ID          string   `json:"id" yaml:"id"`
	Array       bool     `json:"array" yaml:"array"`
	EntityTypes []string `json:"entity_types" yaml:"entity_types"`
	Operators   []string `json:"operators" yaml:"operators"`
}

func newTypesCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types [entity_type]",
		Short: "List registered field types",
		Long: `List registered field types with the entity types that may use them
and the query operators they support. With an entity type, lists only the
types that entity type permits. Reads the config file only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			reg, err := cfg.BuildRegistry()
			if err != nil {
				return err
			}
			ids := reg.TypeIDs()
			if len(args) == 1 {
				ids = reg.TypeIDsFor(args[0])
			}
			return render(cmd.OutOrStdout(), g.output, typeViews(reg, ids))
		},
	}
}

func typeViews(reg *fieldtype.Registry, ids []string) []typeView {
	out := make([]typeView, 0, len(ids))
	for _, id := range ids {
		d, ok := reg.Lookup(id)
		if !ok {
			continue
		}
		view := typeView{ID: id, Array: d.Array, EntityTypes: reg.EntityTypesFor(id), Operators: []string{}}
		if d.Finder != nil {
			for _, op := range d.Finder.Operators {
				view.Operators = append(view.Operators, string(op))
			}
		}
		out = append(out, view)
	}
	return out
}
