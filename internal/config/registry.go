// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package config

import (
	"slices"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/field/postgres"
	"github.com/customfields/customfields/internal/fieldtype"
	"github.com/customfields/customfields/internal/fieldtype/luatype"
)

// Source returns the host table description of the entity type.
func (et EntityType) Source() postgres.EntitySource {
	return postgres.EntitySource{
		Table:       et.Table,
		IDColumn:    et.IDColumn,
		IDType:      et.IDType,
		ScopeColumn: et.ScopeColumn,
	}
}

// EntitySources returns the host tables keyed by entity type.
func (c *Config) EntitySources() map[string]postgres.EntitySource {
	out := make(map[string]postgres.EntitySource, len(c.EntityTypes))
	for name, et := range c.EntityTypes {
		out[name] = et.Source()
	}
	return out
}

// BuildRegistry registers the built-in and custom types, binds every
// entity type to the types its patterns match, and freezes the result.
// Custom types are registered in order, so one may build on an earlier one.
func (c *Config) BuildRegistry() (*fieldtype.Registry, error) {
	reg := fieldtype.NewDefaultRegistry(fieldtype.Settings{DateTimePrecision: c.DateTimePrecision})

	for _, ct := range c.CustomTypes {
		src, err := ct.source()
		if err != nil {
			return nil, err
		}
		timeout, err := ct.timeout()
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("custom_type", ct.ID).Wrap(err)
		}
		err = luatype.Register(reg, luatype.Definition{
			ID:      ct.ID,
			Base:    ct.Base,
			Script:  src,
			Options: ct.Options,
			Timeout: timeout,
		})
		if err != nil {
			return nil, oops.With("custom_type", ct.ID).Wrap(err)
		}
	}

	ids := reg.TypeIDs()
	names := make([]string, 0, len(c.EntityTypes))
	for name := range c.EntityTypes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		matched, err := matchTypes(c.EntityTypes[name].FieldTypes, ids)
		if err != nil {
			return nil, oops.With("entity_type", name).Wrap(err)
		}
		if err := reg.BindEntityType(name, matched...); err != nil {
			return nil, err
		}
	}

	reg.Freeze()
	return reg, nil
}

// matchTypes returns the IDs matched by any pattern, in ID order. Every
// pattern must match at least one ID.
func matchTypes(patterns, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("pattern", p).Wrap(err)
		}
		var hit bool
		for _, id := range ids {
			if g.Match(id) {
				seen[id] = true
				hit = true
			}
		}
		if !hit {
			return nil, oops.Code("CONFIG_INVALID").
				With("pattern", p).
				Errorf("field type pattern %q matches no registered type", p)
		}
	}

	out := make([]string, 0, len(seen))
	for _, id := range ids {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
