// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"github.com/oklog/ulid/v2"
)

// EntityRef identifies the entity that owns a value. The ID is opaque to
// this package; a new owner has a type but no ID until it is saved.
//
// Storage cannot tie a value to its owner with a single foreign key, so
// Value.Validate checks the type against the field definition instead.
type EntityRef struct {
	Type string
	ID   string
}

// IsNew reports whether the owner has not been saved yet.
func (r EntityRef) IsNew() bool { return r.ID == "" }

func (r EntityRef) String() string {
	if r.ID == "" {
		return r.Type + ":new"
	}
	return r.Type + ":" + r.ID
}

// Owner is implemented by host entities that carry custom fields.
type Owner interface {
	// EntityRef returns the owner's type and, once saved, its ID.
	EntityRef() EntityRef
	// FieldScope returns the scope used to select definitions, or nil.
	FieldScope() *string
	// FieldValues returns the owner's in-memory value collection.
	FieldValues() *ValueSet
}

// ValueSet is an owner's in-memory collection of values, keyed by field.
// The zero value is an empty, unloaded set.
type ValueSet struct {
	loaded bool
	values []*Value
}

// Loaded reports whether persisted values were read into the set.
func (s *ValueSet) Loaded() bool { return s.loaded }

// Values returns the values in insertion order.
func (s *ValueSet) Values() []*Value { return s.values }

// Len returns the number of values.
func (s *ValueSet) Len() int { return len(s.values) }

// ByField returns the value for a field definition ID, or nil.
func (s *ValueSet) ByField(id ulid.ULID) *Value {
	for _, v := range s.values {
		if v.FieldID == id {
			return v
		}
	}
	return nil
}

// ByName returns the value whose definition is named name, or nil. Only
// values with a resolved definition that applies to the owner are matched.
func (s *ValueSet) ByName(name string) *Value {
	for _, v := range s.values {
		if v.def != nil && !v.dormant && v.def.Name == name {
			return v
		}
	}
	return nil
}

// Get returns the logical value of the named field.
func (s *ValueSet) Get(name string) (any, bool) {
	v := s.ByName(name)
	if v == nil {
		return nil, false
	}
	return v.Get(), true
}

// Map returns logical values keyed by field name.
func (s *ValueSet) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for _, v := range s.values {
		if v.def != nil && !v.dormant {
			out[v.def.Name] = v.Get()
		}
	}
	return out
}

// Reset empties the set and marks it unloaded.
func (s *ValueSet) Reset() {
	s.loaded = false
	s.values = nil
}

func (s *ValueSet) add(v *Value) {
	s.values = append(s.values, v)
}

// load merges persisted values into the set. Values already present for a
// field keep their in-memory state.
func (s *ValueSet) load(persisted []*Value) {
	for _, v := range persisted {
		if s.ByField(v.FieldID) == nil {
			s.add(v)
		}
	}
	s.loaded = true
}
