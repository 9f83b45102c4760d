// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/customfields/customfields/internal/fieldtype"
	"github.com/customfields/customfields/internal/finder"
	"github.com/customfields/customfields/internal/validate"
	"github.com/customfields/customfields/pkg/errutil"
)

var tracer = otel.Tracer("customfields/field")

// DefaultBackfillBatchSize is the number of entities backfilled per
// transaction when a definition is created.
const DefaultBackfillBatchSize = 500

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Registry          *fieldtype.Registry
	Definitions       DefinitionRepository
	Values            ValueRepository
	Entities          EntityLister
	Transactor        Transactor
	BackfillBatchSize int
	Logger            *slog.Logger
}

// Service manages definitions and values and translates queries.
type Service struct {
	registry  *fieldtype.Registry
	defs      DefinitionRepository
	values    ValueRepository
	entities  EntityLister
	tx        Transactor
	batchSize int
	logger    *slog.Logger
}

// NewService creates a new Service with the given configuration.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		registry:  cfg.Registry,
		defs:      cfg.Definitions,
		values:    cfg.Values,
		entities:  cfg.Entities,
		tx:        cfg.Transactor,
		batchSize: cfg.BackfillBatchSize,
		logger:    cfg.Logger,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBackfillBatchSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Registry returns the type registry the service resolves types with.
func (s *Service) Registry() *fieldtype.Registry { return s.registry }

// CreateDefinitionInput describes a new definition.
type CreateDefinitionInput struct {
	Name         string
	TypeID       string
	EntityType   string
	Scope        *string
	DefaultValue any
	Options      fieldtype.Options
}

// DefinitionPatch lists changes to a definition. Nil fields are left
// unchanged. TypeID may only repeat the current type.
type DefinitionPatch struct {
	Name         *string
	TypeID       *string
	Scope        *string
	ClearScope   bool
	DefaultValue any
	SetDefault   bool
	Options      fieldtype.Options
}

// CreateDefinition validates and stores a definition, then backfills a
// value holding the cast default for every existing entity in scope.
//
// Schema problems return a *ValidationError and nothing is stored. A
// backfill failure returns the stored definition together with a
// BACKFILL_FAILED error; entities missed by the backfill get their value
// when they are next bound.
func (s *Service) CreateDefinition(ctx context.Context, in CreateDefinitionInput) (def *Definition, err error) {
	ctx, span := tracer.Start(ctx, "field.create", trace.WithAttributes(
		attribute.String("field.entity_type", in.EntityType),
		attribute.String("field.type_id", in.TypeID),
		attribute.String("field.name", in.Name),
	))
	defer func() { endSpan(span, err) }()

	def = &Definition{
		ID:           ulid.Make(),
		Name:         in.Name,
		TypeID:       in.TypeID,
		EntityType:   in.EntityType,
		Scope:        in.Scope,
		DefaultValue: in.DefaultValue,
		Options:      in.Options.Clone(),
	}
	if err := s.checkDefinition(ctx, def); err != nil {
		return nil, err
	}
	def.normalize()

	now := time.Now().UTC()
	def.CreatedAt, def.UpdatedAt = now, now
	if err := s.defs.Create(ctx, def); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, taken(AttrName)
		}
		return nil, oops.Code("DEFINITION_CREATE_FAILED").
			With("entity_type", def.EntityType).
			With("name", def.Name).
			Wrap(err)
	}
	recordDefinitionCreated(def.EntityType, def.TypeID)
	s.logger.InfoContext(ctx, "field definition created",
		"definition_id", def.ID.String(),
		"entity_type", def.EntityType,
		"name", def.Name,
		"type_id", def.TypeID)

	if err := s.backfill(ctx, def); err != nil {
		errutil.LogError(s.logger, "field backfill failed", err)
		return def, err
	}
	return def, nil
}

// checkDefinition runs schema validation plus the name uniqueness check.
func (s *Service) checkDefinition(ctx context.Context, def *Definition) error {
	verr := def.Validate(s.registry)
	if def.Name != "" && !verr.HasErrors() {
		existing, err := s.defs.FindByName(ctx, def.EntityType, def.Scope, def.Name)
		switch {
		case err == nil && existing.ID != def.ID:
			verr.Add(AttrName, validate.CodeTaken, nil)
		case err != nil && !errors.Is(err, ErrNotFound):
			return oops.With("operation", "check definition name").With("name", def.Name).Wrap(err)
		}
	}
	return verr.orNil()
}

// backfill inserts default values in keyset-paged batches, one
// transaction per batch. The first failing batch aborts the rest.
func (s *Service) backfill(ctx context.Context, def *Definition) (err error) {
	ctx, span := tracer.Start(ctx, "field.backfill", trace.WithAttributes(
		attribute.String("field.definition_id", def.ID.String()),
		attribute.Int("field.batch_size", s.batchSize),
	))
	defer func() { endSpan(span, err) }()

	var (
		after string
		total int64
	)
	for {
		ids, err := s.entities.ListIDs(ctx, def.EntityType, def.Scope, after, s.batchSize)
		if err != nil {
			return backfillFailed(def, after, total, err)
		}
		if len(ids) == 0 {
			break
		}

		start := time.Now()
		var inserted int64
		err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
			n, err := s.values.Backfill(ctx, def, ids)
			inserted = n
			return err
		})
		recordBackfillBatch(def.EntityType, inserted, time.Since(start))
		if err != nil {
			return backfillFailed(def, after, total, err)
		}
		total += inserted

		if len(ids) < s.batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	span.SetAttributes(attribute.Int64("field.backfilled", total))
	s.logger.InfoContext(ctx, "field values backfilled",
		"definition_id", def.ID.String(),
		"entity_type", def.EntityType,
		"count", total)
	return nil
}

func backfillFailed(def *Definition, after string, total int64, err error) error {
	return oops.Code("BACKFILL_FAILED").
		With("definition_id", def.ID.String()).
		With("name", def.Name).
		With("after", after).
		With("backfilled", total).
		Wrapf(err, "backfill %s.%s", def.EntityType, def.Name)
}

// UpdateDefinition applies patch to a definition. The type cannot change.
// Stored values are not rewritten when the default changes.
func (s *Service) UpdateDefinition(ctx context.Context, id ulid.ULID, patch DefinitionPatch) (*Definition, error) {
	def, err := s.defs.Get(ctx, id)
	if err != nil {
		return nil, oops.Wrapf(err, "get definition %s", id)
	}
	if patch.TypeID != nil && *patch.TypeID != def.TypeID {
		return nil, &ValidationError{Errors: []FieldError{{Field: AttrTypeID, Code: validate.CodeImmutable}}}
	}

	if patch.Name != nil {
		def.Name = *patch.Name
	}
	switch {
	case patch.ClearScope:
		def.Scope = nil
	case patch.Scope != nil:
		def.Scope = patch.Scope
	}
	if patch.SetDefault {
		def.DefaultValue = patch.DefaultValue
	}
	if patch.Options != nil {
		def.Options = patch.Options.Clone()
	}

	if err := s.checkDefinition(ctx, def); err != nil {
		return nil, err
	}
	def.normalize()
	def.UpdatedAt = time.Now().UTC()

	if err := s.defs.Update(ctx, def); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, taken(AttrName)
		}
		return nil, oops.Wrapf(err, "update definition %s", id)
	}
	return def, nil
}

// DestroyDefinition deletes a definition and all of its values in one
// transaction.
func (s *Service) DestroyDefinition(ctx context.Context, id ulid.ULID) error {
	def, err := s.defs.Get(ctx, id)
	if err != nil {
		return oops.Wrapf(err, "get definition %s", id)
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.values.DeleteByField(ctx, id); err != nil {
			return err
		}
		return s.defs.Delete(ctx, id)
	})
	if err != nil {
		return oops.Wrapf(err, "destroy definition %s", id)
	}
	recordDefinitionDestroyed(def.EntityType)
	s.logger.InfoContext(ctx, "field definition destroyed",
		"definition_id", id.String(),
		"entity_type", def.EntityType,
		"name", def.Name)
	return nil
}

// GetDefinition retrieves a definition by ID, bound to its type when the
// type is registered.
func (s *Service) GetDefinition(ctx context.Context, id ulid.ULID) (*Definition, error) {
	def, err := s.defs.Get(ctx, id)
	if err != nil {
		return nil, oops.Wrapf(err, "get definition %s", id)
	}
	_ = def.Bind(s.registry)
	return def, nil
}

// DefinitionsFor returns the definitions that apply to an entity of
// entityType in scope, ordered by name. A definition in scope shadows an
// unscoped definition with the same name.
func (s *Service) DefinitionsFor(ctx context.Context, entityType string, scope *string) ([]*Definition, error) {
	defs, err := s.defs.ListFor(ctx, entityType, scope)
	if err != nil {
		return nil, oops.With("entity_type", entityType).Wrapf(err, "list definitions")
	}
	defs = shadowUnscoped(defs)
	s.bindAll(defs)
	return defs, nil
}

func shadowUnscoped(defs []*Definition) []*Definition {
	scoped := make(map[string]struct{})
	for _, def := range defs {
		if def.Scope != nil {
			scoped[def.Name] = struct{}{}
		}
	}
	if len(scoped) == 0 {
		return defs
	}
	out := defs[:0]
	for _, def := range defs {
		if _, ok := scoped[def.Name]; ok && def.Scope == nil {
			continue
		}
		out = append(out, def)
	}
	return out
}

// ListDefinitions returns the definitions of an entity type, or all of
// them when entityType is empty.
func (s *Service) ListDefinitions(ctx context.Context, entityType string) ([]*Definition, error) {
	defs, err := s.defs.List(ctx, entityType)
	if err != nil {
		return nil, oops.With("entity_type", entityType).Wrapf(err, "list definitions")
	}
	s.bindAll(defs)
	return defs, nil
}

// bindAll binds definitions whose type is registered. The others keep the
// identity pipeline.
func (s *Service) bindAll(defs []*Definition) {
	for _, def := range defs {
		if err := def.Bind(s.registry); err != nil {
			s.logger.Warn("field definition has unregistered type",
				"definition_id", def.ID.String(),
				"type_id", def.TypeID)
		}
	}
}

// GetValue retrieves a value with its definition attached.
func (s *Service) GetValue(ctx context.Context, id ulid.ULID) (*Value, error) {
	v, err := s.values.Get(ctx, id)
	if err != nil {
		return nil, oops.Wrapf(err, "get value %s", id)
	}
	if err := s.attach(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// attach loads and binds the value's definition. A missing definition
// leaves the value detached.
func (s *Service) attach(ctx context.Context, v *Value) error {
	def, err := s.defs.Get(ctx, v.FieldID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Wrapf(err, "get definition %s", v.FieldID)
	}
	_ = def.Bind(s.registry)
	v.Attach(def)
	return nil
}

// SetValue casts logical into an existing value, validates and stores it.
func (s *Service) SetValue(ctx context.Context, id ulid.ULID, logical any) (*Value, error) {
	v, err := s.GetValue(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Set(logical)
	if !v.Validate() {
		recordValidationFailures(v.Errors)
		return nil, &ValidationError{Errors: v.Errors}
	}
	v.UpdatedAt = time.Now().UTC()
	if err := s.values.Update(ctx, v); err != nil {
		return nil, oops.Wrapf(err, "update value %s", id)
	}
	v.MarkPersisted()
	return v, nil
}

// CreateValue stores a new value for entity and field. A second value for
// the same entity and field is rejected with taken.
func (s *Service) CreateValue(ctx context.Context, entity EntityRef, fieldID ulid.ULID, logical any) (*Value, error) {
	def, err := s.defs.Get(ctx, fieldID)
	if errors.Is(err, ErrNotFound) {
		return nil, &ValidationError{Errors: []FieldError{{Field: AttrField, Code: validate.CodeRequired}}}
	}
	if err != nil {
		return nil, oops.Wrapf(err, "get definition %s", fieldID)
	}
	_ = def.Bind(s.registry)

	v := NewValue(def, entity)
	v.Set(logical)
	verr := &ValidationError{}
	if entity.ID == "" {
		verr.Add(AttrEntity, validate.CodeRequired, nil)
	}
	if !v.Validate() {
		verr.Errors = append(verr.Errors, v.Errors...)
	}
	if !verr.HasErrors() {
		_, err := s.values.Find(ctx, entity, fieldID)
		switch {
		case err == nil:
			verr.Add(AttrField, validate.CodeTaken, nil)
		case !errors.Is(err, ErrNotFound):
			return nil, oops.With("operation", "check value uniqueness").Wrap(err)
		}
	}
	if verr.HasErrors() {
		recordValidationFailures(verr.Errors)
		return nil, verr
	}

	v.ID = ulid.Make()
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	if err := s.values.Create(ctx, v); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, taken(AttrField)
		}
		return nil, oops.Wrapf(err, "create value for %s", entity)
	}
	v.MarkPersisted()
	return v, nil
}

// DestroyValue deletes a value by ID.
func (s *Service) DestroyValue(ctx context.Context, id ulid.ULID) error {
	if err := s.values.Delete(ctx, id); err != nil {
		return oops.Wrapf(err, "delete value %s", id)
	}
	return nil
}

// ValuesOf returns the stored values of entity, each with its definition
// attached.
func (s *Service) ValuesOf(ctx context.Context, entity EntityRef) ([]*Value, error) {
	values, err := s.values.ListByEntity(ctx, entity)
	if err != nil {
		return nil, oops.Wrapf(err, "list values of %s", entity)
	}
	for _, v := range values {
		if err := s.attach(ctx, v); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// PutValue sets the named field of entity, creating the value when the
// entity has none yet.
func (s *Service) PutValue(ctx context.Context, entity EntityRef, scope *string, name string, logical any) (*Value, error) {
	def, err := s.definitionByName(ctx, entity.Type, scope, name)
	if err != nil {
		return nil, err
	}
	existing, err := s.values.Find(ctx, entity, def.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.CreateValue(ctx, entity, def.ID, logical)
	case err != nil:
		return nil, oops.Wrapf(err, "find value of %s", entity)
	}
	return s.SetValue(ctx, existing.ID, logical)
}

// DefinitionByName returns the definition named name that applies to
// entityType in scope. Unscoped definitions apply in every scope.
func (s *Service) DefinitionByName(ctx context.Context, entityType string, scope *string, name string) (*Definition, error) {
	return s.definitionByName(ctx, entityType, scope, name)
}

// Filter is one query condition on a custom field, addressed by name.
type Filter struct {
	Field    string
	Operator string
	Value    any
}

// Where translates a filter on the named field into a predicate over
// value rows. Operators the field's type does not support fail with
// UNSUPPORTED_OPERATOR before any value is read.
func (s *Service) Where(ctx context.Context, entityType string, scope *string, f Filter) (p finder.Predicate, err error) {
	ctx, span := tracer.Start(ctx, "finder.where", trace.WithAttributes(
		attribute.String("field.entity_type", entityType),
		attribute.String("field.name", f.Field),
		attribute.String("finder.operator", f.Operator),
	))
	defer func() { endSpan(span, err) }()

	def, err := s.definitionByName(ctx, entityType, scope, f.Field)
	if err != nil {
		return finder.Predicate{}, err
	}
	desc, err := s.registry.Resolve(def.TypeID)
	if err != nil {
		return finder.Predicate{}, oops.With("field", def.Name).Wrap(err)
	}
	pred, err := finder.Translate(def.TypeID, desc.Finder, f.Operator, f.Value, desc.NewCaster(def.Options))
	if err != nil {
		return finder.Predicate{}, oops.With("field", def.Name).Wrap(err)
	}
	return finder.And(finder.Predicate{SQL: "field_id = ?", Args: []any{def.ID.String()}}, pred), nil
}

// FindEntityIDs returns the IDs of entities matching every filter.
func (s *Service) FindEntityIDs(ctx context.Context, entityType string, scope *string, filters ...Filter) ([]string, error) {
	preds := make([]finder.Predicate, 0, len(filters))
	for _, f := range filters {
		p, err := s.Where(ctx, entityType, scope, f)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	ids, err := s.values.FindEntityIDs(ctx, entityType, preds)
	if err != nil {
		return nil, oops.With("entity_type", entityType).Wrapf(err, "find entities")
	}
	return ids, nil
}

func (s *Service) definitionByName(ctx context.Context, entityType string, scope *string, name string) (*Definition, error) {
	defs, err := s.DefinitionsFor(ctx, entityType, scope)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Name == name {
			return def, nil
		}
	}
	return nil, oops.Code("FIELD_NOT_FOUND").
		With("entity_type", entityType).
		With("field", name).
		Wrap(ErrNotFound)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
