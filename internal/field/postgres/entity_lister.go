// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

// ErrUnknownEntityType is returned for entity types without a configured
// source table.
var ErrUnknownEntityType = errors.New("unknown entity type")

var idTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_ ]*$`)

// EntitySource locates the host table of an entity type.
type EntitySource struct {
	// Table is the table name, optionally schema qualified.
	Table string
	// IDColumn holds the entity ID. Defaults to "id".
	IDColumn string
	// IDType is the SQL type of IDColumn, used to compare page cursors.
	// Defaults to "text".
	IDType string
	// ScopeColumn holds the entity's field scope. Empty when the entity
	// type is not scoped.
	ScopeColumn string
}

func (s EntitySource) withDefaults() EntitySource {
	if s.IDColumn == "" {
		s.IDColumn = "id"
	}
	if s.IDType == "" {
		s.IDType = "text"
	}
	return s
}

// Validate checks that the source can be rendered into SQL.
func (s EntitySource) Validate() error {
	s = s.withDefaults()
	if strings.TrimSpace(s.Table) == "" {
		return oops.Code("INVALID_ENTITY_SOURCE").Errorf("table is required")
	}
	if !idTypePattern.MatchString(s.IDType) {
		return oops.Code("INVALID_ENTITY_SOURCE").With("id_type", s.IDType).Errorf("invalid id type")
	}
	return nil
}

// EntityLister implements field.EntityLister over the configured host
// tables with keyset pagination.
type EntityLister struct {
	db      DB
	sources map[string]EntitySource
}

// NewEntityLister creates an EntityLister for the given entity sources.
func NewEntityLister(db DB, sources map[string]EntitySource) (*EntityLister, error) {
	l := &EntityLister{db: db, sources: make(map[string]EntitySource, len(sources))}
	for entityType, src := range sources {
		if err := src.Validate(); err != nil {
			return nil, oops.With("entity_type", entityType).Wrap(err)
		}
		l.sources[entityType] = src.withDefaults()
	}
	return l, nil
}

// ListIDs returns up to limit entity IDs greater than after, in ID order.
// For a scoped definition only entities in that scope are listed.
func (l *EntityLister) ListIDs(ctx context.Context, entityType string, scope *string, after string, limit int) ([]string, error) {
	src, ok := l.sources[entityType]
	if !ok {
		return nil, oops.Code("UNKNOWN_ENTITY_TYPE").With("entity_type", entityType).Wrap(ErrUnknownEntityType)
	}
	query, args := src.pageQuery(scope, after, limit)

	rows, err := Conn(ctx, l.db).Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("ENTITY_QUERY_FAILED").With("entity_type", entityType).Wrap(err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, oops.Code("ENTITY_QUERY_FAILED").With("entity_type", entityType).Wrap(err)
	}
	return ids, nil
}

func (s EntitySource) pageQuery(scope *string, after string, limit int) (string, []any) {
	id := pgx.Identifier{s.IDColumn}.Sanitize()

	var (
		conds []string
		args  []any
	)
	if after != "" {
		args = append(args, after)
		conds = append(conds, fmt.Sprintf("%s > $%d::text::%s", id, len(args), s.IDType))
	}
	if scope != nil && s.ScopeColumn != "" {
		args = append(args, *scope)
		conds = append(conds, fmt.Sprintf("%s = $%d", pgx.Identifier{s.ScopeColumn}.Sanitize(), len(args)))
	}
	args = append(args, limit)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s::text FROM %s", id, pgx.Identifier(strings.Split(s.Table, ".")).Sanitize())
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s LIMIT $%d", id, len(args))
	return b.String(), args
}
