// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/internal/validate"
)

// Attribute names used in value validation errors.
const (
	AttrField  = "field"
	AttrEntity = "entity"
	AttrValue  = "value"
)

// Value is one entity's stored data for one field definition. Raw holds
// the storable form written to the value column.
type Value struct {
	ID        ulid.ULID
	Entity    EntityRef
	FieldID   ulid.ULID
	Raw       any
	CreatedAt time.Time
	UpdatedAt time.Time

	// Errors holds the failures of the last Validate call.
	Errors []FieldError

	def       *Definition
	persisted bool
	changed   bool
	// dormant marks a stored value whose definition no longer applies to
	// the owner. Binder leaves it untouched.
	dormant bool
}

// NewValue builds an unsaved value for entity seeded with the
// definition's default.
func NewValue(def *Definition, entity EntityRef) *Value {
	return &Value{
		Entity:  entity,
		FieldID: def.ID,
		Raw:     def.DefaultValue,
		def:     def,
		changed: true,
	}
}

// Attach sets the definition used to cast and validate the value.
func (v *Value) Attach(def *Definition) {
	v.def = def
	if def != nil {
		v.FieldID = def.ID
	}
}

// Definition returns the attached definition, or nil.
func (v *Value) Definition() *Definition { return v.def }

// Set casts logical through the definition's caster into Raw. Without a
// definition the value is stored as given.
func (v *Value) Set(logical any) {
	raw := logical
	if v.def != nil {
		raw = v.def.Caster().Serialize(logical)
	}
	if !sameStored(raw, v.Raw) {
		v.changed = true
	}
	v.Raw = raw
}

// Get returns the logical form of Raw.
func (v *Value) Get() any {
	if v.def == nil {
		return v.Raw
	}
	return v.def.Caster().Deserialize(v.Raw)
}

// Dormant reports whether the value belongs to a definition that does not
// apply to its owner's current scope.
func (v *Value) Dormant() bool { return v.dormant }

// Persisted reports whether the value was read from or written to storage.
func (v *Value) Persisted() bool { return v.persisted }

// Changed reports whether the value differs from what storage holds.
func (v *Value) Changed() bool { return v.changed || !v.persisted }

// MarkPersisted records that storage now holds the value.
func (v *Value) MarkPersisted() {
	v.persisted = true
	v.changed = false
}

// Validate checks the field and entity references, that the entity type
// matches the definition, and the type's validator. Failures are kept in
// Errors.
func (v *Value) Validate() bool {
	v.Errors = nil
	add := func(attr string, code validate.Code, ctx map[string]any) {
		v.Errors = append(v.Errors, FieldError{Field: attr, Code: code, Context: ctx})
	}

	if v.def == nil {
		add(AttrField, validate.CodeRequired, nil)
	}
	if v.Entity.Type == "" {
		add(AttrEntity, validate.CodeRequired, nil)
	}
	if v.def == nil || v.Entity.Type == "" {
		return false
	}
	if v.Entity.Type != v.def.EntityType {
		add(AttrEntity, validate.CodeEntityTypeMismatch, map[string]any{
			"expected": v.def.EntityType,
			"actual":   v.Entity.Type,
		})
		return false
	}

	if val := v.def.validator(); val != nil && !val.Validate(v.Get()) {
		for _, e := range val.Errors() {
			add(AttrValue, e.Code, e.Context)
		}
	}
	return len(v.Errors) == 0
}

// fieldName addresses the value in an owner's aggregated errors.
func (v *Value) fieldName() string {
	if v.def != nil {
		return v.def.Name
	}
	return v.FieldID.String()
}

// sameStored reports whether two storable forms write the same JSON. A
// value read back from storage holds json.Number where a freshly cast one
// holds int64 or float64.
func sameStored(a, b any) bool {
	if _, ok := a.(cast.Marker); ok {
		return reflect.DeepEqual(a, b)
	}
	if _, ok := b.(cast.Marker); ok {
		return reflect.DeepEqual(a, b)
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}
