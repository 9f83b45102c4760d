// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/field"
	"github.com/customfields/customfields/internal/finder"
)

const valueColumns = `id, entity_type, entity_id, field_id, value, created_at, updated_at`

// ValueRepository implements field.ValueRepository using PostgreSQL.
type ValueRepository struct {
	db DB
}

// NewValueRepository creates a new ValueRepository.
func NewValueRepository(db DB) *ValueRepository {
	return &ValueRepository{db: db}
}

// Create persists a new value.
func (r *ValueRepository) Create(ctx context.Context, v *field.Value) error {
	raw, err := encodeJSON(v.Raw)
	if err != nil {
		return oops.Code("VALUE_CREATE_FAILED").With("id", v.ID.String()).Wrap(err)
	}

	_, err = Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO field_values (`+valueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.ID.String(), v.Entity.Type, v.Entity.ID, v.FieldID.String(), raw, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, valueEntityConstraint) {
			return oops.Code("VALUE_DUPLICATE").
				With("entity", v.Entity.String()).
				With("field_id", v.FieldID.String()).
				Wrap(field.ErrDuplicate)
		}
		return oops.Code("VALUE_CREATE_FAILED").With("id", v.ID.String()).Wrap(err)
	}
	return nil
}

// Get retrieves a value by ID.
func (r *ValueRepository) Get(ctx context.Context, id ulid.ULID) (*field.Value, error) {
	row := Conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+valueColumns+`
		FROM field_values WHERE id = $1
	`, id.String())

	v, err := scanValue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VALUE_NOT_FOUND").With("id", id.String()).Wrap(field.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VALUE_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return v, nil
}

// Find returns the value of entity for fieldID.
func (r *ValueRepository) Find(ctx context.Context, entity field.EntityRef, fieldID ulid.ULID) (*field.Value, error) {
	row := Conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+valueColumns+`
		FROM field_values
		WHERE entity_type = $1 AND entity_id = $2 AND field_id = $3
	`, entity.Type, entity.ID, fieldID.String())

	v, err := scanValue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VALUE_NOT_FOUND").
			With("entity", entity.String()).
			With("field_id", fieldID.String()).
			Wrap(field.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VALUE_GET_FAILED").With("entity", entity.String()).Wrap(err)
	}
	return v, nil
}

// Update rewrites a value's raw data.
func (r *ValueRepository) Update(ctx context.Context, v *field.Value) error {
	raw, err := encodeJSON(v.Raw)
	if err != nil {
		return oops.Code("VALUE_UPDATE_FAILED").With("id", v.ID.String()).Wrap(err)
	}

	result, err := Conn(ctx, r.db).Exec(ctx, `
		UPDATE field_values SET value = $2, updated_at = $3 WHERE id = $1
	`, v.ID.String(), raw, v.UpdatedAt)
	if err != nil {
		return oops.Code("VALUE_UPDATE_FAILED").With("id", v.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("VALUE_NOT_FOUND").With("id", v.ID.String()).Wrap(field.ErrNotFound)
	}
	return nil
}

// Upsert inserts v or overwrites the row for the same entity and field.
// The stored row's ID and creation time are copied back into v.
func (r *ValueRepository) Upsert(ctx context.Context, v *field.Value) error {
	raw, err := encodeJSON(v.Raw)
	if err != nil {
		return oops.Code("VALUE_UPSERT_FAILED").With("id", v.ID.String()).Wrap(err)
	}

	var idStr string
	err = Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO field_values (`+valueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type, entity_id, field_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, v.ID.String(), v.Entity.Type, v.Entity.ID, v.FieldID.String(), raw, v.CreatedAt, v.UpdatedAt).
		Scan(&idStr, &v.CreatedAt)
	if err != nil {
		return oops.Code("VALUE_UPSERT_FAILED").
			With("entity", v.Entity.String()).
			With("field_id", v.FieldID.String()).
			Wrap(err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return oops.Code("VALUE_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	v.ID = id
	return nil
}

// Delete removes a value by ID.
func (r *ValueRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := Conn(ctx, r.db).Exec(ctx, `DELETE FROM field_values WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("VALUE_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("VALUE_NOT_FOUND").With("id", id.String()).Wrap(field.ErrNotFound)
	}
	return nil
}

// ListByEntity returns all values of an entity.
func (r *ValueRepository) ListByEntity(ctx context.Context, entity field.EntityRef) ([]*field.Value, error) {
	rows, err := Conn(ctx, r.db).Query(ctx, `
		SELECT `+valueColumns+`
		FROM field_values
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY field_id
	`, entity.Type, entity.ID)
	if err != nil {
		return nil, oops.Code("VALUE_QUERY_FAILED").With("entity", entity.String()).Wrap(err)
	}
	defer rows.Close()

	var values []*field.Value
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, oops.Code("VALUE_SCAN_FAILED").With("entity", entity.String()).Wrap(err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("VALUE_QUERY_FAILED").With("entity", entity.String()).Wrap(err)
	}
	return values, nil
}

// DeleteByEntity removes all values of an entity.
func (r *ValueRepository) DeleteByEntity(ctx context.Context, entity field.EntityRef) error {
	_, err := Conn(ctx, r.db).Exec(ctx, `
		DELETE FROM field_values WHERE entity_type = $1 AND entity_id = $2
	`, entity.Type, entity.ID)
	if err != nil {
		return oops.Code("VALUE_DELETE_FAILED").With("entity", entity.String()).Wrap(err)
	}
	return nil
}

// DeleteByField removes all values of a definition.
func (r *ValueRepository) DeleteByField(ctx context.Context, fieldID ulid.ULID) error {
	_, err := Conn(ctx, r.db).Exec(ctx, `DELETE FROM field_values WHERE field_id = $1`, fieldID.String())
	if err != nil {
		return oops.Code("VALUE_DELETE_FAILED").With("field_id", fieldID.String()).Wrap(err)
	}
	return nil
}

// Backfill inserts the definition's default for every entity ID that has
// no value yet, in a single statement.
func (r *ValueRepository) Backfill(ctx context.Context, def *field.Definition, entityIDs []string) (int64, error) {
	if len(entityIDs) == 0 {
		return 0, nil
	}
	raw, err := encodeJSON(def.DefaultValue)
	if err != nil {
		return 0, oops.Code("VALUE_BACKFILL_FAILED").With("field_id", def.ID.String()).Wrap(err)
	}
	ids := make([]string, len(entityIDs))
	for i := range ids {
		ids[i] = ulid.Make().String()
	}

	result, err := Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO field_values (`+valueColumns+`)
		SELECT t.id, $3::text, t.entity_id, $4::text, $5::jsonb, $6::timestamptz, $6::timestamptz
		FROM unnest($1::text[], $2::text[]) AS t(id, entity_id)
		ON CONFLICT (entity_type, entity_id, field_id) DO NOTHING
	`, ids, entityIDs, def.EntityType, def.ID.String(), raw, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("VALUE_BACKFILL_FAILED").
			With("field_id", def.ID.String()).
			With("batch_size", len(entityIDs)).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// FindEntityIDs intersects the entity IDs matching each predicate.
func (r *ValueRepository) FindEntityIDs(ctx context.Context, entityType string, preds []finder.Predicate) ([]string, error) {
	query, args := entityQuery(entityType, preds)
	rows, err := Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("VALUE_QUERY_FAILED").With("entity_type", entityType).Wrap(err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, oops.Code("VALUE_QUERY_FAILED").With("entity_type", entityType).Wrap(err)
	}
	return ids, nil
}

// entityQuery renders one SELECT per predicate joined with INTERSECT.
// Without predicates it lists every entity that has a value.
func entityQuery(entityType string, preds []finder.Predicate) (string, []any) {
	if len(preds) == 0 {
		return `SELECT DISTINCT entity_id FROM field_values WHERE entity_type = $1 ORDER BY entity_id`,
			[]any{entityType}
	}

	var (
		parts []string
		args  []any
	)
	for _, p := range preds {
		args = append(args, entityType)
		n := len(args)
		parts = append(parts, fmt.Sprintf(
			"SELECT entity_id FROM field_values WHERE entity_type = $%d AND (%s)", n, p.Render(n)))
		args = append(args, p.Args...)
	}
	return strings.Join(parts, "\nINTERSECT\n") + "\nORDER BY entity_id", args
}

func scanValue(row pgx.Row) (*field.Value, error) {
	var (
		v          field.Value
		idStr      string
		fieldIDStr string
		raw        []byte
	)
	if err := row.Scan(&idStr, &v.Entity.Type, &v.Entity.ID, &fieldIDStr, &raw, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("VALUE_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	fieldID, err := ulid.Parse(fieldIDStr)
	if err != nil {
		return nil, oops.Code("VALUE_SCAN_FAILED").With("field_id", fieldIDStr).Wrap(err)
	}
	v.ID, v.FieldID = id, fieldID
	if v.Raw, err = decodeJSON(raw); err != nil {
		return nil, oops.Code("VALUE_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	v.MarkPersisted()
	return &v, nil
}
