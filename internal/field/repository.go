// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/customfields/customfields/internal/finder"
)

// DefinitionRepository manages definition persistence.
type DefinitionRepository interface {
	// Create persists a new definition. A name clash within the entity
	// type and scope returns an error wrapping ErrDuplicate.
	Create(ctx context.Context, def *Definition) error

	// Get retrieves a definition by ID.
	Get(ctx context.Context, id ulid.ULID) (*Definition, error)

	// Update modifies name, scope, default value and options.
	Update(ctx context.Context, def *Definition) error

	// Delete removes a definition by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// FindByName returns the definition with exactly this entity type,
	// scope and name. A nil scope only matches a nil scope.
	FindByName(ctx context.Context, entityType string, scope *string, name string) (*Definition, error)

	// ListFor returns unscoped definitions of the entity type plus those
	// matching scope, ordered by name.
	ListFor(ctx context.Context, entityType string, scope *string) ([]*Definition, error)

	// List returns the definitions of an entity type, or all definitions
	// when entityType is empty, ordered by entity type and name.
	List(ctx context.Context, entityType string) ([]*Definition, error)
}

// ValueRepository manages value persistence.
type ValueRepository interface {
	// Create persists a new value. A second value for the same entity and
	// field returns an error wrapping ErrDuplicate.
	Create(ctx context.Context, v *Value) error

	// Get retrieves a value by ID.
	Get(ctx context.Context, id ulid.ULID) (*Value, error)

	// Find returns the value of one entity for one field.
	Find(ctx context.Context, entity EntityRef, fieldID ulid.ULID) (*Value, error)

	// Update rewrites a value's raw data.
	Update(ctx context.Context, v *Value) error

	// Upsert inserts the value or overwrites the existing row for the same
	// entity and field. v.ID and v.CreatedAt are set from the stored row.
	Upsert(ctx context.Context, v *Value) error

	// Delete removes a value by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// ListByEntity returns all values of an entity.
	ListByEntity(ctx context.Context, entity EntityRef) ([]*Value, error)

	// DeleteByEntity removes all values of an entity.
	DeleteByEntity(ctx context.Context, entity EntityRef) error

	// DeleteByField removes all values of a definition.
	DeleteByField(ctx context.Context, fieldID ulid.ULID) error

	// Backfill inserts the definition's default for each entity ID,
	// skipping entities that already have a value. It returns the number
	// of rows inserted.
	Backfill(ctx context.Context, def *Definition, entityIDs []string) (int64, error)

	// FindEntityIDs returns the sorted IDs of entities of entityType that
	// have a value row matching every predicate.
	FindEntityIDs(ctx context.Context, entityType string, preds []finder.Predicate) ([]string, error)
}

// EntityLister pages through the IDs of existing host entities. Pages are
// ordered by ID and start after the given ID; an empty after starts at the
// beginning.
type EntityLister interface {
	ListIDs(ctx context.Context, entityType string, scope *string, after string, limit int) ([]string, error)
}

// Transactor runs fn in a transaction carried by the context passed to fn.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
