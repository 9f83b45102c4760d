// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package fieldtype holds the field type registry: which types exist, how
// each one casts, validates and queries its values, and which entity types
// may use which field types.
package fieldtype

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/internal/finder"
	"github.com/customfields/customfields/internal/validate"
)

// ErrUnknownType indicates a type ID that is not registered.
var ErrUnknownType = errors.New("unknown field type")

// ErrInvalidTypeID indicates an empty type ID.
var ErrInvalidTypeID = errors.New("field type id cannot be empty")

// ErrRegistryFrozen indicates a mutation after Freeze.
var ErrRegistryFrozen = errors.New("field type registry is frozen")

// Descriptor binds a type ID to its caster, validator and finder spec.
// Caster, Validator and Check build per-definition behavior from the
// definition's options; any of them may be nil.
type Descriptor struct {
	ID        string
	Array     bool
	Caster    func(Options) cast.Caster
	Validator func(Options) validate.Validator
	Check     func(Options) []validate.Error
	Finder    *finder.Spec
}

// NewCaster returns the caster for opts. Types without a caster use
// identity.
func (d Descriptor) NewCaster(opts Options) cast.Caster {
	if d.Caster == nil {
		return cast.Identity{}
	}
	return d.Caster(opts)
}

// NewValidator returns the validator for opts. Types without a validator
// accept every value.
func (d Descriptor) NewValidator(opts Options) validate.Validator {
	if d.Validator == nil {
		return validate.All()
	}
	return d.Validator(opts)
}

// CheckOptions reports option errors. Each error's context names the
// offending option under "option".
func (d Descriptor) CheckOptions(opts Options) []validate.Error {
	if d.Check == nil {
		return nil
	}
	return d.Check(opts)
}

// Registry maps type IDs to descriptors and entity types to the type IDs
// they permit. It is populated at startup and then frozen; after Freeze it
// is read-only and safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]Descriptor
	bindings map[string]map[string]struct{}
	frozen   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]Descriptor),
		bindings: make(map[string]map[string]struct{}),
	}
}

// Register adds a descriptor. Registering an existing ID replaces it.
func (r *Registry) Register(d Descriptor) error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrInvalidTypeID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return oops.Code("REGISTRY_FROZEN").With("type_id", d.ID).Wrap(ErrRegistryFrozen)
	}
	r.types[d.ID] = d
	return nil
}

// MustRegister adds a descriptor, panicking on error.
// This is intended for startup only.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// BindEntityType permits typeIDs on entityType, adding to any earlier
// bindings. Every ID must already be registered; on failure nothing is
// bound.
func (r *Registry) BindEntityType(entityType string, typeIDs ...string) error {
	if strings.TrimSpace(entityType) == "" {
		return oops.Code("INVALID_ENTITY_TYPE").Errorf("entity type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return oops.Code("REGISTRY_FROZEN").With("entity_type", entityType).Wrap(ErrRegistryFrozen)
	}
	for _, id := range typeIDs {
		if _, ok := r.types[id]; !ok {
			return oops.Code("UNKNOWN_FIELD_TYPE").
				With("entity_type", entityType).
				With("type_id", id).
				Wrapf(ErrUnknownType, "binding %q to %q", id, entityType)
		}
	}

	set, ok := r.bindings[entityType]
	if !ok {
		set = make(map[string]struct{}, len(typeIDs))
		r.bindings[entityType] = set
	}
	for _, id := range typeIDs {
		set[id] = struct{}{}
	}
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.types[id]
	return d, ok
}

// Resolve returns the descriptor for id or an UNKNOWN_FIELD_TYPE error.
func (r *Registry) Resolve(id string) (Descriptor, error) {
	d, ok := r.Lookup(id)
	if !ok {
		return Descriptor{}, oops.Code("UNKNOWN_FIELD_TYPE").
			With("type_id", id).
			Wrapf(ErrUnknownType, "field type %q", id)
	}
	return d, nil
}

// MustLookup returns the descriptor for id, panicking when it is not
// registered.
func (r *Registry) MustLookup(id string) Descriptor {
	d, err := r.Resolve(id)
	if err != nil {
		panic(err)
	}
	return d
}

// TypeIDs returns all registered type IDs, sorted.
func (r *Registry) TypeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EntityTypes returns all bound entity types, sorted.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bindings))
	for et := range r.bindings {
		out = append(out, et)
	}
	slices.Sort(out)
	return out
}

// TypeIDsFor returns the type IDs permitted on entityType, sorted. An
// unbound entity type yields an empty slice.
func (r *Registry) TypeIDsFor(entityType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.bindings[entityType]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EntityTypesFor returns the entity types that permit typeID, sorted.
func (r *Registry) EntityTypesFor(typeID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []string{}
	for et, set := range r.bindings {
		if _, ok := set[typeID]; ok {
			out = append(out, et)
		}
	}
	slices.Sort(out)
	return out
}

// Allowed reports whether typeID is registered and permitted on
// entityType.
func (r *Registry) Allowed(entityType, typeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.types[typeID]; !ok {
		return false
	}
	_, ok := r.bindings[entityType][typeID]
	return ok
}
