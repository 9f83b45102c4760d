// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package finder translates (operator, operand) pairs into SQL predicates
// over the JSONB value column of stored custom field values.
package finder

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/cast"
)

// ValueColumn is the JSONB column predicates are written against.
const ValueColumn = "value"

// ErrUnsupportedOperator indicates the operator is unknown or not legal for
// the field type.
var ErrUnsupportedOperator = errors.New("unsupported operator")

// ErrInvalidOperand indicates the operand could not be cast to the field
// type.
var ErrInvalidOperand = errors.New("invalid operand")

// Spec describes how values of one field type are queried. SQLType is the
// PostgreSQL type scalars (or array elements) are cast to before comparing.
type Spec struct {
	SQLType   string
	Array     bool
	Operators []Operator
}

// Scalar returns a Spec for scalar values of sqlType.
func Scalar(sqlType string, ops ...[]Operator) *Spec {
	return &Spec{SQLType: sqlType, Operators: slices.Concat(ops...)}
}

// ArrayOf returns a Spec for JSON arrays whose elements are cast to sqlType.
func ArrayOf(sqlType string, ops ...[]Operator) *Spec {
	return &Spec{SQLType: sqlType, Array: true, Operators: slices.Concat(ops...)}
}

// Supports reports whether op is legal for the spec. A nil spec supports
// nothing.
func (s *Spec) Supports(op Operator) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Operators, op)
}

// Predicate is a SQL boolean expression with "?" placeholders.
type Predicate struct {
	SQL  string
	Args []any
}

// Render replaces placeholders with PostgreSQL positional parameters
// numbered from offset+1.
func (p Predicate) Render(offset int) string {
	var b strings.Builder
	b.Grow(len(p.SQL) + 2*len(p.Args))
	n := offset
	for _, r := range p.SQL {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// And joins predicates with AND. Empty predicates are skipped.
func And(preds ...Predicate) Predicate {
	var (
		parts []string
		args  []any
	)
	for _, p := range preds {
		if p.SQL == "" {
			continue
		}
		parts = append(parts, "("+p.SQL+")")
		args = append(args, p.Args...)
	}
	return Predicate{SQL: strings.Join(parts, " AND "), Args: args}
}

// Translate builds the predicate for "value <op> raw" on a field of type
// typeID. raw is cast with c before it reaches SQL; for array types c is
// the array caster and its element caster is used for element operands.
// Unknown or illegal operators fail with UNSUPPORTED_OPERATOR.
func Translate(typeID string, spec *Spec, token string, raw any, c cast.Caster) (Predicate, error) {
	op, ok := ParseOperator(token)
	if !ok || !spec.Supports(op) {
		return Predicate{}, oops.Code("UNSUPPORTED_OPERATOR").
			With("operator", token).
			With("type_id", typeID).
			Wrapf(ErrUnsupportedOperator, "operator %q is not supported by field type %q", token, typeID)
	}
	if c == nil {
		c = cast.Identity{}
	}
	if spec.Array {
		return translateArray(typeID, spec, op, raw, c)
	}
	return translateScalar(typeID, spec, op, raw, c)
}

func projection(sqlType string) string {
	return fmt.Sprintf("(%s #>> '{}')::%s", ValueColumn, sqlType)
}

// placeholder casts a parameter to sqlType. Temporal types go through text
// so string operands bind without driver-side type inference.
func placeholder(sqlType string) string {
	switch sqlType {
	case "date", "timestamptz", "timestamp", "time":
		return "?::text::" + sqlType
	}
	return "?::" + sqlType
}

func translateScalar(typeID string, spec *Spec, op Operator, raw any, c cast.Caster) (Predicate, error) {
	proj := projection(spec.SQLType)
	operand := c.Serialize(raw)
	if cast.IsMarker(operand) {
		return Predicate{}, invalidOperand(typeID, op, raw)
	}

	switch {
	case op == OpEq:
		return Predicate{SQL: proj + " IS NOT DISTINCT FROM " + placeholder(spec.SQLType), Args: []any{operand}}, nil
	case op == OpNeq:
		return Predicate{SQL: proj + " IS DISTINCT FROM " + placeholder(spec.SQLType), Args: []any{operand}}, nil
	case op.isPattern():
		s, ok := operand.(string)
		if !ok {
			return Predicate{}, invalidOperand(typeID, op, raw)
		}
		return patternPredicate(proj, op, s), nil
	}

	cmp := op.sqlComparison()
	if cmp == "" || operand == nil {
		return Predicate{}, invalidOperand(typeID, op, raw)
	}
	return Predicate{SQL: proj + " " + cmp + " " + placeholder(spec.SQLType), Args: []any{operand}}, nil
}

func patternPredicate(proj string, op Operator, s string) Predicate {
	escaped := escapeLike(s)
	var pattern string
	switch op {
	case OpStartsWith, OpNotStartsWith, OpIStartsWith, OpNotIStartsWith:
		pattern = escaped + "%"
	case OpEndsWith, OpNotEndsWith, OpIEndsWith, OpNotIEndsWith:
		pattern = "%" + escaped
	default:
		pattern = "%" + escaped + "%"
	}

	like := "LIKE"
	switch op {
	case OpIStartsWith, OpIEndsWith, OpIContains, OpNotIStartsWith, OpNotIEndsWith, OpNotIContains:
		like = "ILIKE"
	}

	expr := proj + " " + like + " ?"
	switch op {
	case OpNotStartsWith, OpNotEndsWith, OpNotContains, OpNotIStartsWith, OpNotIEndsWith, OpNotIContains:
		// null values do not match the pattern, so they satisfy the negation
		expr = "(" + expr + ") IS NOT TRUE"
	}
	return Predicate{SQL: expr, Args: []any{pattern}}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// arrayExpr treats a JSON null or non-array value as an empty array.
func arrayExpr() string {
	return fmt.Sprintf("(CASE WHEN jsonb_typeof(%[1]s) = 'array' THEN %[1]s ELSE '[]'::jsonb END)", ValueColumn)
}

func translateArray(typeID string, spec *Spec, op Operator, raw any, c cast.Caster) (Predicate, error) {
	elem := c
	if ac, ok := c.(cast.Array); ok {
		elem = ac.Elem
	}

	if op.isSize() {
		n := cast.Integer{}.Serialize(raw)
		if n == nil || cast.IsMarker(n) {
			return Predicate{}, invalidOperand(typeID, op, raw)
		}
		return Predicate{
			SQL:  fmt.Sprintf("jsonb_array_length(%s) %s ?::bigint", arrayExpr(), op.sqlComparison()),
			Args: []any{n},
		}, nil
	}

	operand := elem.Serialize(raw)
	if cast.IsMarker(operand) {
		return Predicate{}, invalidOperand(typeID, op, raw)
	}

	switch op {
	case OpInclude, OpNotInclude:
		doc, err := json.Marshal([]any{operand})
		if err != nil {
			return Predicate{}, oops.Code("INVALID_OPERAND").
				With("operator", string(op)).
				With("type_id", typeID).
				Wrap(err)
		}
		expr := ValueColumn + " @> ?::text::jsonb"
		if op == OpNotInclude {
			expr = "(" + expr + ") IS NOT TRUE"
		}
		return Predicate{SQL: expr, Args: []any{string(doc)}}, nil
	}

	if operand == nil {
		return Predicate{}, invalidOperand(typeID, op, raw)
	}
	cond := fmt.Sprintf("e.v::%s %s %s", spec.SQLType, op.sqlComparison(), placeholder(spec.SQLType))
	elements := fmt.Sprintf("jsonb_array_elements_text(%s) AS e(v)", arrayExpr())
	switch op {
	case OpAnyGt, OpAnyGteq, OpAnyLt, OpAnyLteq:
		return Predicate{
			SQL:  fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", elements, cond),
			Args: []any{operand},
		}, nil
	default:
		return Predicate{
			SQL:  fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE (%s) IS NOT TRUE)", elements, cond),
			Args: []any{operand},
		}, nil
	}
}

func invalidOperand(typeID string, op Operator, raw any) error {
	return oops.Code("INVALID_OPERAND").
		With("operator", string(op)).
		With("type_id", typeID).
		With("operand", raw).
		Wrapf(ErrInvalidOperand, "operand %v cannot be used with %q on field type %q", raw, op, typeID)
}
