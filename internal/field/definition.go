// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package field stores custom field definitions and their per-entity
// values, and binds them to the lifecycle of host entities.
package field

import (
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/internal/fieldtype"
	"github.com/customfields/customfields/internal/validate"
)

// Attribute names used in definition validation errors.
const (
	AttrName         = "name"
	AttrTypeID       = "type_id"
	AttrEntityType   = "entity_type"
	AttrOptions      = "options"
	AttrDefaultValue = "default_value"
)

var namePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Definition describes one named, typed custom field of an entity type.
// DefaultValue holds the storable form produced by the type's caster.
type Definition struct {
	ID           ulid.ULID
	Name         string
	TypeID       string
	EntityType   string
	Scope        *string
	DefaultValue any
	Options      fieldtype.Options
	CreatedAt    time.Time
	UpdatedAt    time.Time

	desc *fieldtype.Descriptor
}

// Bind resolves the definition's type in reg. An unbound definition casts
// with the identity caster and has no validator.
func (d *Definition) Bind(reg *fieldtype.Registry) error {
	desc, err := reg.Resolve(d.TypeID)
	if err != nil {
		d.desc = nil
		return oops.With("definition_id", d.ID.String()).With("name", d.Name).Wrap(err)
	}
	d.desc = &desc
	return nil
}

// Bound reports whether the definition's type was resolved.
func (d *Definition) Bound() bool { return d.desc != nil }

// Array reports whether the definition's type holds a list of values.
func (d *Definition) Array() bool { return d.desc != nil && d.desc.Array }

// Caster returns the caster for the definition's type and options.
func (d *Definition) Caster() cast.Caster {
	if d.desc == nil {
		return cast.Identity{}
	}
	return d.desc.NewCaster(d.Options)
}

// validator returns the type's validator, or nil when unbound.
func (d *Definition) validator() validate.Validator {
	if d.desc == nil {
		return nil
	}
	return d.desc.NewValidator(d.Options)
}

// ScopeString renders the scope for logs and output.
func (d *Definition) ScopeString() string {
	if d.Scope == nil {
		return ""
	}
	return *d.Scope
}

// Validate checks the definition against reg: name format, the type being
// allowed for the entity type, the type's options and the default value.
// A definition that passes is bound to its type.
func (d *Definition) Validate(reg *fieldtype.Registry) *ValidationError {
	verr := &ValidationError{}

	switch {
	case strings.TrimSpace(d.Name) == "":
		verr.Add(AttrName, validate.CodeBlank, nil)
	case !namePattern.MatchString(d.Name):
		verr.Add(AttrName, validate.CodeInvalid, nil)
	}
	if strings.TrimSpace(d.EntityType) == "" {
		verr.Add(AttrEntityType, validate.CodeBlank, nil)
	}

	if d.TypeID == "" {
		verr.Add(AttrTypeID, validate.CodeBlank, nil)
		return verr
	}
	desc, ok := reg.Lookup(d.TypeID)
	if !ok || (d.EntityType != "" && !reg.Allowed(d.EntityType, d.TypeID)) {
		verr.Add(AttrTypeID, validate.CodeInclusion, map[string]any{"entity_type": d.EntityType})
		return verr
	}
	d.desc = &desc

	optErrs := desc.CheckOptions(d.Options)
	for _, e := range optErrs {
		verr.Add(AttrOptions, e.Code, e.Context)
	}
	if len(optErrs) > 0 {
		return verr
	}

	c := d.Caster()
	raw := d.storableDefault(c)
	v := d.validator()
	if !v.Validate(c.Deserialize(raw)) {
		for _, e := range v.Errors() {
			verr.Add(AttrDefaultValue, e.Code, e.Context)
		}
	}
	return verr
}

// normalize replaces DefaultValue with its storable form.
func (d *Definition) normalize() {
	d.DefaultValue = d.storableDefault(d.Caster())
}

// storableDefault casts the default. Array types without a default start
// out as an empty list.
func (d *Definition) storableDefault(c cast.Caster) any {
	if d.DefaultValue == nil && d.Array() {
		return []any{}
	}
	return c.Serialize(d.DefaultValue)
}

// sameScope reports whether two scopes are equal, treating nil as a value.
func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
