// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/field"
)

const definitionColumns = `id, name, type_id, entity_type, scope, default_value, options, created_at, updated_at`

// DefinitionRepository implements field.DefinitionRepository using PostgreSQL.
type DefinitionRepository struct {
	db DB
}

// NewDefinitionRepository creates a new DefinitionRepository.
func NewDefinitionRepository(db DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

// Create persists a new definition.
func (r *DefinitionRepository) Create(ctx context.Context, def *field.Definition) error {
	defaultJSON, err := encodeJSON(def.DefaultValue)
	if err != nil {
		return oops.Code("DEFINITION_CREATE_FAILED").With("id", def.ID.String()).Wrap(err)
	}
	optionsJSON, err := encodeOptions(def.Options)
	if err != nil {
		return oops.Code("DEFINITION_CREATE_FAILED").With("id", def.ID.String()).Wrap(err)
	}

	_, err = Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO field_definitions (`+definitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, def.ID.String(), def.Name, def.TypeID, def.EntityType, def.Scope,
		defaultJSON, optionsJSON, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, definitionNameConstraint) {
			return oops.Code("DEFINITION_DUPLICATE_NAME").
				With("entity_type", def.EntityType).
				With("scope", def.ScopeString()).
				With("name", def.Name).
				Wrapf(field.ErrDuplicate, "field %q already exists for %s", def.Name, def.EntityType)
		}
		return oops.Code("DEFINITION_CREATE_FAILED").With("id", def.ID.String()).Wrap(err)
	}
	return nil
}

// Get retrieves a definition by ID.
func (r *DefinitionRepository) Get(ctx context.Context, id ulid.ULID) (*field.Definition, error) {
	row := Conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM field_definitions WHERE id = $1
	`, id.String())

	def, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("DEFINITION_NOT_FOUND").With("id", id.String()).Wrap(field.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("DEFINITION_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return def, nil
}

// Update modifies name, scope, default value and options. The type and
// entity type are never written.
func (r *DefinitionRepository) Update(ctx context.Context, def *field.Definition) error {
	defaultJSON, err := encodeJSON(def.DefaultValue)
	if err != nil {
		return oops.Code("DEFINITION_UPDATE_FAILED").With("id", def.ID.String()).Wrap(err)
	}
	optionsJSON, err := encodeOptions(def.Options)
	if err != nil {
		return oops.Code("DEFINITION_UPDATE_FAILED").With("id", def.ID.String()).Wrap(err)
	}

	result, err := Conn(ctx, r.db).Exec(ctx, `
		UPDATE field_definitions
		SET name = $2, scope = $3, default_value = $4, options = $5, updated_at = $6
		WHERE id = $1
	`, def.ID.String(), def.Name, def.Scope, defaultJSON, optionsJSON, def.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, definitionNameConstraint) {
			return oops.Code("DEFINITION_DUPLICATE_NAME").
				With("entity_type", def.EntityType).
				With("name", def.Name).
				Wrap(field.ErrDuplicate)
		}
		return oops.Code("DEFINITION_UPDATE_FAILED").With("id", def.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("DEFINITION_NOT_FOUND").With("id", def.ID.String()).Wrap(field.ErrNotFound)
	}
	return nil
}

// Delete removes a definition by ID. Values go with it through the
// foreign key.
func (r *DefinitionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := Conn(ctx, r.db).Exec(ctx, `DELETE FROM field_definitions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("DEFINITION_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("DEFINITION_NOT_FOUND").With("id", id.String()).Wrap(field.ErrNotFound)
	}
	return nil
}

// FindByName returns the definition with this entity type, scope and name.
func (r *DefinitionRepository) FindByName(ctx context.Context, entityType string, scope *string, name string) (*field.Definition, error) {
	row := Conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM field_definitions
		WHERE entity_type = $1 AND scope IS NOT DISTINCT FROM $2 AND name = $3
	`, entityType, scope, name)

	def, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("DEFINITION_NOT_FOUND").
			With("entity_type", entityType).
			With("name", name).
			Wrap(field.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("DEFINITION_GET_FAILED").With("name", name).Wrap(err)
	}
	return def, nil
}

// ListFor returns unscoped definitions of entityType plus those in scope.
func (r *DefinitionRepository) ListFor(ctx context.Context, entityType string, scope *string) ([]*field.Definition, error) {
	rows, err := Conn(ctx, r.db).Query(ctx, `
		SELECT `+definitionColumns+`
		FROM field_definitions
		WHERE entity_type = $1 AND (scope IS NULL OR scope = $2)
		ORDER BY name, scope NULLS FIRST
	`, entityType, scope)
	if err != nil {
		return nil, oops.Code("DEFINITION_QUERY_FAILED").With("entity_type", entityType).Wrap(err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

// List returns the definitions of entityType, or all of them.
func (r *DefinitionRepository) List(ctx context.Context, entityType string) ([]*field.Definition, error) {
	rows, err := Conn(ctx, r.db).Query(ctx, `
		SELECT `+definitionColumns+`
		FROM field_definitions
		WHERE $1::text = '' OR entity_type = $1
		ORDER BY entity_type, name, scope NULLS FIRST
	`, entityType)
	if err != nil {
		return nil, oops.Code("DEFINITION_QUERY_FAILED").With("entity_type", entityType).Wrap(err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

func scanDefinition(row pgx.Row) (*field.Definition, error) {
	var (
		def         field.Definition
		idStr       string
		defaultJSON []byte
		optionsJSON []byte
	)
	if err := row.Scan(&idStr, &def.Name, &def.TypeID, &def.EntityType, &def.Scope,
		&defaultJSON, &optionsJSON, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("DEFINITION_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	def.ID = id
	if def.DefaultValue, err = decodeJSON(defaultJSON); err != nil {
		return nil, oops.Code("DEFINITION_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	if def.Options, err = decodeOptions(optionsJSON); err != nil {
		return nil, oops.Code("DEFINITION_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	return &def, nil
}

func scanDefinitions(rows pgx.Rows) ([]*field.Definition, error) {
	var defs []*field.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, oops.Code("DEFINITION_SCAN_FAILED").Wrap(err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("DEFINITION_QUERY_FAILED").Wrap(err)
	}
	return defs, nil
}
