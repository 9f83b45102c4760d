// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/customfields/customfields/internal/fieldtype"
	"github.com/customfields/customfields/internal/finder"
)

var errStorage = errors.New("storage unavailable")

// memDefinitions is an in-memory DefinitionRepository. Stored copies drop
// the resolved type like a database round trip does.
type memDefinitions struct {
	mu        sync.Mutex
	defs      map[ulid.ULID]Definition
	duplicate bool
}

func newMemDefinitions() *memDefinitions {
	return &memDefinitions{defs: make(map[ulid.ULID]Definition)}
}

func (m *memDefinitions) put(def *Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *def
	cp.desc = nil
	m.defs[def.ID] = cp
}

func (m *memDefinitions) Create(_ context.Context, def *Definition) error {
	if m.duplicate {
		return ErrDuplicate
	}
	m.put(def)
	return nil
}

func (m *memDefinitions) Get(_ context.Context, id ulid.ULID) (*Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &def, nil
}

func (m *memDefinitions) Update(_ context.Context, def *Definition) error {
	if m.duplicate {
		return ErrDuplicate
	}
	m.put(def)
	return nil
}

func (m *memDefinitions) Delete(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.defs, id)
	return nil
}

func (m *memDefinitions) FindByName(_ context.Context, entityType string, scope *string, name string) (*Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range m.defs {
		if def.EntityType == entityType && def.Name == name && sameScope(def.Scope, scope) {
			return &def, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memDefinitions) ListFor(_ context.Context, entityType string, scope *string) ([]*Definition, error) {
	return m.list(func(def Definition) bool {
		return def.EntityType == entityType && (def.Scope == nil || sameScope(def.Scope, scope))
	}), nil
}

func (m *memDefinitions) List(_ context.Context, entityType string) ([]*Definition, error) {
	return m.list(func(def Definition) bool {
		return entityType == "" || def.EntityType == entityType
	}), nil
}

func (m *memDefinitions) list(keep func(Definition) bool) []*Definition {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Definition
	for _, def := range m.defs {
		if keep(def) {
			out = append(out, &def)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// memValues is an in-memory ValueRepository.
type memValues struct {
	mu           sync.Mutex
	values       map[ulid.ULID]Value
	backfills    int
	failBackfill int
	failUpsert   bool
	upserts      int
	listCalls    int
	findPreds    [][]finder.Predicate
	findResult   []string
}

func newMemValues() *memValues {
	return &memValues{values: make(map[ulid.ULID]Value)}
}

func (m *memValues) put(v *Value) {
	cp := *v
	cp.def = nil
	cp.Errors = nil
	m.values[v.ID] = cp
}

func (m *memValues) loaded(v Value) *Value {
	v.persisted = true
	v.changed = false
	return &v
}

func (m *memValues) findLocked(entity EntityRef, fieldID ulid.ULID) (Value, bool) {
	for _, v := range m.values {
		if v.Entity == entity && v.FieldID == fieldID {
			return v, true
		}
	}
	return Value{}, false
}

func (m *memValues) Create(_ context.Context, v *Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findLocked(v.Entity, v.FieldID); ok {
		return ErrDuplicate
	}
	m.put(v)
	return nil
}

func (m *memValues) Get(_ context.Context, id ulid.ULID) (*Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.loaded(v), nil
}

func (m *memValues) Find(_ context.Context, entity EntityRef, fieldID ulid.ULID) (*Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.findLocked(entity, fieldID)
	if !ok {
		return nil, ErrNotFound
	}
	return m.loaded(v), nil
}

func (m *memValues) Update(_ context.Context, v *Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[v.ID]; !ok {
		return ErrNotFound
	}
	m.put(v)
	return nil
}

func (m *memValues) Upsert(_ context.Context, v *Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failUpsert {
		return errStorage
	}
	if existing, ok := m.findLocked(v.Entity, v.FieldID); ok {
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt
	}
	m.put(v)
	return nil
}

func (m *memValues) Delete(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, id)
	return nil
}

func (m *memValues) ListByEntity(_ context.Context, entity EntityRef) ([]*Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []*Value
	for _, v := range m.values {
		if v.Entity == entity {
			out = append(out, m.loaded(v))
		}
	}
	return out, nil
}

func (m *memValues) DeleteByEntity(_ context.Context, entity EntityRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.values {
		if v.Entity == entity {
			delete(m.values, id)
		}
	}
	return nil
}

func (m *memValues) DeleteByField(_ context.Context, fieldID ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.values {
		if v.FieldID == fieldID {
			delete(m.values, id)
		}
	}
	return nil
}

func (m *memValues) Backfill(_ context.Context, def *Definition, entityIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backfills++
	if m.failBackfill > 0 && m.backfills == m.failBackfill {
		return 0, errStorage
	}
	var n int64
	for _, id := range entityIDs {
		ref := EntityRef{Type: def.EntityType, ID: id}
		if _, ok := m.findLocked(ref, def.ID); ok {
			continue
		}
		m.put(&Value{ID: ulid.Make(), Entity: ref, FieldID: def.ID, Raw: def.DefaultValue})
		n++
	}
	return n, nil
}

func (m *memValues) FindEntityIDs(_ context.Context, _ string, preds []finder.Predicate) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findPreds = append(m.findPreds, preds)
	return m.findResult, nil
}

// valuesOf returns the stored values of one field keyed by entity ID.
func (m *memValues) valuesOf(fieldID ulid.ULID) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any)
	for _, v := range m.values {
		if v.FieldID == fieldID {
			out[v.Entity.ID] = v.Raw
		}
	}
	return out
}

func (m *memValues) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// memEntities lists host entity IDs per entity type.
type memEntities struct {
	ids   map[string][]string
	fail  bool
	pages int
}

func (m *memEntities) ListIDs(_ context.Context, entityType string, _ *string, after string, limit int) ([]string, error) {
	m.pages++
	if m.fail {
		return nil, errStorage
	}
	ids := slices.Clone(m.ids[entityType])
	sort.Strings(ids)
	var out []string
	for _, id := range ids {
		if id > after && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeTransactor struct {
	calls int
}

func (f *fakeTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// author is a host entity used by binder tests.
type author struct {
	id     string
	scope  *string
	values ValueSet
}

func (a *author) EntityRef() EntityRef   { return EntityRef{Type: "Author", ID: a.id} }
func (a *author) FieldScope() *string    { return a.scope }
func (a *author) FieldValues() *ValueSet { return &a.values }

type fixture struct {
	registry *fieldtype.Registry
	defs     *memDefinitions
	values   *memValues
	entities *memEntities
	tx       *fakeTransactor
	svc      *Service
	binder   *Binder
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	reg := fieldtype.NewDefaultRegistry(fieldtype.DefaultSettings())
	require.NoError(t, reg.BindEntityType("Author",
		fieldtype.Boolean, fieldtype.Integer, fieldtype.Text, fieldtype.Enum, fieldtype.IntegerArray))
	require.NoError(t, reg.BindEntityType("Book", fieldtype.Text))
	reg.Freeze()

	f := &fixture{
		registry: reg,
		defs:     newMemDefinitions(),
		values:   newMemValues(),
		entities: &memEntities{ids: map[string][]string{}},
		tx:       &fakeTransactor{},
	}
	f.svc = NewService(ServiceConfig{
		Registry:          reg,
		Definitions:       f.defs,
		Values:            f.values,
		Entities:          f.entities,
		Transactor:        f.tx,
		BackfillBatchSize: batchSize,
	})
	f.binder = NewBinder(f.svc)
	return f
}

func (f *fixture) define(t *testing.T, in CreateDefinitionInput) *Definition {
	t.Helper()
	if in.EntityType == "" {
		in.EntityType = "Author"
	}
	def, err := f.svc.CreateDefinition(context.Background(), in)
	require.NoError(t, err)
	return def
}

func strPtr(s string) *string { return &s }

func newID() ulid.ULID { return ulid.Make() }
