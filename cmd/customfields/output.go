// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/customfields/customfields/internal/field"
	"github.com/customfields/customfields/internal/fieldtype"
)

// Output formats.
const (
	formatYAML = "yaml"
	formatJSON = "json"
)

// render writes v to w as YAML or indented JSON.
func render(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return oops.Code("OUTPUT_FAILED").Wrap(enc.Close())
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return oops.Code("OUTPUT_FAILED").Wrap(enc.Encode(v))
	default:
		return oops.Code("INVALID_OUTPUT").
			With("output", format).
			Errorf("unknown output format %q: use %s or %s", format, formatYAML, formatJSON)
	}
}

// parseValue reads a command line argument as a YAML scalar or sequence
// ("42", "true", "[a, b]", "null"). Anything YAML rejects is kept as the
// literal string.
func parseValue(arg string) any {
	var v any
	if err := yaml.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	// Mappings are not field values.
	if _, ok := v.(map[string]any); ok {
		return arg
	}
	return v
}

// parseOptions turns key=value pairs into definition options.
func parseOptions(pairs []string) (fieldtype.Options, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	opts := make(fieldtype.Options, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, oops.Code("INVALID_OPTION").
				With("option", pair).
				Errorf("option %q must be key=value", pair)
		}
		opts[key] = parseValue(val)
	}
	return opts, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type definitionView struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	TypeID       string            `json:"type_id" yaml:"type_id"`
	EntityType   string            `json:"entity_type" yaml:"entity_type"`
	Scope        *string           `json:"scope" yaml:"scope"`
	DefaultValue any               `json:"default_value" yaml:"default_value"`
	Options      fieldtype.Options `json:"options,omitempty" yaml:"options,omitempty"`
	CreatedAt    time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" yaml:"updated_at"`
}

func newDefinitionView(d *field.Definition) definitionView {
	return definitionView{
		ID:           d.ID.String(),
		Name:         d.Name,
		TypeID:       d.TypeID,
		EntityType:   d.EntityType,
		Scope:        d.Scope,
		DefaultValue: d.DefaultValue,
		Options:      d.Options,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func newDefinitionViews(defs []*field.Definition) []definitionView {
	out := make([]definitionView, 0, len(defs))
	for _, d := range defs {
		out = append(out, newDefinitionView(d))
	}
	return out
}

type valueView struct {
	ID         string    `json:"id" yaml:"id"`
	EntityType string    `json:"entity_type" yaml:"entity_type"`
	EntityID   string    `json:"entity_id" yaml:"entity_id"`
	Field      string    `json:"field" yaml:"field"`
	FieldID    string    `json:"field_id" yaml:"field_id"`
	Value      any       `json:"value" yaml:"value"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

func newValueView(v *field.Value) valueView {
	view := valueView{
		ID:         v.ID.String(),
		EntityType: v.Entity.Type,
		EntityID:   v.Entity.ID,
		FieldID:    v.FieldID.String(),
		Value:      v.Raw,
		UpdatedAt:  v.UpdatedAt,
	}
	if def := v.Definition(); def != nil {
		view.Field = def.Name
		view.Value = v.Get()
	}
	return view
}
