// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/customfields/customfields/internal/fieldtype"
)

// Attribute is one permitted input key for an owner's custom fields.
type Attribute struct {
	Name  string
	Array bool
}

// Binder keeps an owner's values in step with the owner's save and
// destroy cycle. A save runs Prepare, Validate, the host save and Persist
// in one transaction.
type Binder struct {
	svc *Service
}

// NewBinder creates a Binder that reads definitions and writes values
// through svc.
func NewBinder(svc *Service) *Binder {
	return &Binder{svc: svc}
}

// Prepare makes sure the owner has one value per applicable definition.
// Persisted values are loaded once for a saved owner; missing values are
// created from the definition's default. attrs maps field names to
// logical values; names without a definition are ignored.
//
// Stored values whose definition no longer applies, after a scope change
// of the definition or the owner, stay in the set as dormant values.
func (b *Binder) Prepare(ctx context.Context, owner Owner, attrs map[string]any) error {
	ref := owner.EntityRef()
	set := owner.FieldValues()

	defs, err := b.svc.DefinitionsFor(ctx, ref.Type, owner.FieldScope())
	if err != nil {
		return err
	}

	if !ref.IsNew() && !set.Loaded() {
		persisted, err := b.svc.values.ListByEntity(ctx, ref)
		if err != nil {
			return oops.With("entity", ref.String()).Wrapf(err, "load values")
		}
		set.load(persisted)
	}

	applies := make(map[ulid.ULID]struct{}, len(defs))
	for _, def := range defs {
		applies[def.ID] = struct{}{}
		v := set.ByField(def.ID)
		if v == nil {
			v = NewValue(def, ref)
			set.add(v)
		} else {
			v.Attach(def)
			v.dormant = false
		}
		if raw, ok := attrs[def.Name]; ok {
			v.Set(raw)
		}
	}

	for _, v := range set.Values() {
		if _, ok := applies[v.FieldID]; ok {
			continue
		}
		v.dormant = true
		if v.def == nil {
			if err := b.svc.attach(ctx, v); err != nil {
				return oops.With("entity", ref.String()).Wrap(err)
			}
		}
	}
	return nil
}

// Validate validates every active value of the owner and returns a
// *ValidationError addressed by field name, or nil.
func (b *Binder) Validate(owner Owner) error {
	verr := &ValidationError{}
	for _, v := range owner.FieldValues().Values() {
		if v.dormant || v.Validate() {
			continue
		}
		name := v.fieldName()
		for _, e := range v.Errors {
			verr.Add(name, e.Code, e.Context)
		}
	}
	recordValidationFailures(verr.Errors)
	return verr.orNil()
}

// Persist writes new and changed values for the saved owner without
// validating them again. Any failure is returned as VALUE_PERSIST_FAILED.
func (b *Binder) Persist(ctx context.Context, owner Owner) error {
	ref := owner.EntityRef()
	if ref.IsNew() {
		return oops.Code("VALUE_PERSIST_FAILED").
			With("entity_type", ref.Type).
			Errorf("owner has no id after save")
	}

	now := time.Now().UTC()
	for _, v := range owner.FieldValues().Values() {
		if v.dormant || !v.Changed() {
			continue
		}
		v.Entity = ref
		if v.ID.IsZero() {
			v.ID = ulid.Make()
			v.CreatedAt = now
		}
		v.UpdatedAt = now
		if err := b.svc.values.Upsert(ctx, v); err != nil {
			return oops.Code("VALUE_PERSIST_FAILED").
				With("entity", ref.String()).
				With("field", v.fieldName()).
				Wrap(err)
		}
		v.MarkPersisted()
	}
	return nil
}

// Save runs the whole save cycle for owner in one transaction. saveHost
// stores the owner itself and must leave EntityRef().ID set.
func (b *Binder) Save(ctx context.Context, owner Owner, attrs map[string]any, saveHost func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "binder.save", trace.WithAttributes(
		attribute.String("field.entity_type", owner.EntityRef().Type),
	))
	defer func() { endSpan(span, err) }()

	return b.svc.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := b.Prepare(ctx, owner, attrs); err != nil {
			return err
		}
		if err := b.Validate(owner); err != nil {
			return err
		}
		if err := saveHost(ctx); err != nil {
			return err
		}
		return b.Persist(ctx, owner)
	})
}

// Destroy deletes the owner's values and the owner in one transaction.
func (b *Binder) Destroy(ctx context.Context, owner Owner, destroyHost func(ctx context.Context) error) error {
	ref := owner.EntityRef()
	err := b.svc.tx.InTransaction(ctx, func(ctx context.Context) error {
		if !ref.IsNew() {
			if err := b.svc.values.DeleteByEntity(ctx, ref); err != nil {
				return oops.With("entity", ref.String()).Wrapf(err, "delete values")
			}
		}
		return destroyHost(ctx)
	})
	if err != nil {
		return err
	}
	owner.FieldValues().Reset()
	return nil
}

// PermittedAttributes lists the input keys accepted for owner, one per
// applicable definition. A definition whose type is not registered is a
// configuration error.
func (b *Binder) PermittedAttributes(ctx context.Context, owner Owner) ([]Attribute, error) {
	ref := owner.EntityRef()
	defs, err := b.svc.DefinitionsFor(ctx, ref.Type, owner.FieldScope())
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, len(defs))
	for _, def := range defs {
		if !def.Bound() {
			return nil, oops.Code("TYPE_NOT_ALLOWED").
				With("entity_type", ref.Type).
				With("field", def.Name).
				With("type_id", def.TypeID).
				Wrap(fieldtype.ErrUnknownType)
		}
		attrs = append(attrs, Attribute{Name: def.Name, Array: def.Array()})
	}
	return attrs, nil
}
