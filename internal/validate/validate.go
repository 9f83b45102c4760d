// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package validate checks deserialized custom field values against the
// options of their field definition and reports structured error codes.
package validate

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// Code is a symbolic validation error code. Codes are stable and meant to
// be translated by the presentation layer.
type Code string

// Error codes produced by the built-in validators.
const (
	CodeRequired           Code = "required"
	CodeExclusion          Code = "exclusion"
	CodeInvalid            Code = "invalid"
	CodeGreaterThanOrEqual Code = "greater_than_or_equal_to"
	CodeLessThanOrEqual    Code = "less_than_or_equal_to"
	CodeTooShort           Code = "too_short"
	CodeTooLong            Code = "too_long"
	CodeSizeTooShort       Code = "size_too_short"
	CodeSizeTooLong        Code = "size_too_long"
	CodeInclusion          Code = "inclusion"
	CodeTaken              Code = "taken"
	CodeEntityTypeMismatch Code = "entity_type_mismatch"
	CodeBlank              Code = "blank"
	CodeNotAllowed         Code = "not_allowed"
	CodeImmutable          Code = "immutable"
)

// Error is one validation failure. A nil Context means a bare code.
type Error struct {
	Code    Code
	Context map[string]any
}

// String renders the code followed by its sorted context, e.g.
// "too_long(count=10)".
func (e Error) String() string {
	if len(e.Context) == 0 {
		return string(e.Code)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, e.Context[k])
	}
	return fmt.Sprintf("%s(%s)", e.Code, strings.Join(parts, ", "))
}

// Validator checks one value. Validate resets previous errors, runs all
// checks and reports whether the value is valid.
type Validator interface {
	Validate(value any) bool
	Errors() []Error
}

// Base accumulates errors for validator implementations.
type Base struct {
	errs []Error
}

// Add records an error. The optional context maps are merged in order.
func (b *Base) Add(code Code, ctx ...map[string]any) {
	var merged map[string]any
	for _, c := range ctx {
		if len(c) == 0 {
			continue
		}
		if merged == nil {
			merged = make(map[string]any, len(c))
		}
		maps.Copy(merged, c)
	}
	b.errs = append(b.errs, Error{Code: code, Context: merged})
}

// Errors returns the errors recorded by the last validation.
func (b *Base) Errors() []Error {
	return b.errs
}

// Reset clears recorded errors.
func (b *Base) Reset() {
	b.errs = nil
}

func (b *Base) ok() bool {
	return len(b.errs) == 0
}

// Func is a loosely typed validation function, the shape used by
// extension field types. Each returned element must be a Code, a string,
// an Error, or a two-element []any holding a code and a map[string]any
// context.
type Func func(value any) []any

// Custom adapts fn into a Validator. A malformed error element is a
// programming error and panics with a VALIDATOR_CONTRACT oops error.
func Custom(fn Func) Validator {
	return &custom{fn: fn}
}

type custom struct {
	Base
	fn Func
}

func (c *custom) Validate(value any) bool {
	c.Reset()
	for _, raw := range c.fn(value) {
		e, err := Normalize(raw)
		if err != nil {
			panic(err)
		}
		c.Add(e.Code, e.Context)
	}
	return c.ok()
}

// Normalize converts a loosely typed error element into an Error.
func Normalize(raw any) (Error, error) {
	switch v := raw.(type) {
	case Error:
		if v.Code == "" {
			break
		}
		return v, nil
	case Code:
		if v == "" {
			break
		}
		return Error{Code: v}, nil
	case string:
		if v == "" {
			break
		}
		return Error{Code: Code(v)}, nil
	case []any:
		if len(v) != 2 {
			break
		}
		code, err := Normalize(v[0])
		if err != nil || code.Context != nil {
			break
		}
		ctx, ok := v[1].(map[string]any)
		if !ok {
			break
		}
		return Error{Code: code.Code, Context: ctx}, nil
	}
	return Error{}, oops.Code("VALIDATOR_CONTRACT").
		With("error", raw).
		Errorf("validator returned %T %v; want a code or a (code, context) pair", raw, raw)
}

// All runs every validator and concatenates their errors.
func All(validators ...Validator) Validator {
	return &all{validators: validators}
}

type all struct {
	Base
	validators []Validator
}

func (a *all) Validate(value any) bool {
	a.Reset()
	for _, v := range a.validators {
		if !v.Validate(value) {
			for _, e := range v.Errors() {
				a.Add(e.Code, e.Context)
			}
		}
	}
	return a.ok()
}

// Then runs next only when first passes, so next may assume a well-typed
// value.
func Then(first, next Validator) Validator {
	return &then{first: first, next: next}
}

type then struct {
	Base
	first, next Validator
}

func (t *then) Validate(value any) bool {
	t.Reset()
	for _, v := range []Validator{t.first, t.next} {
		if !v.Validate(value) {
			for _, e := range v.Errors() {
				t.Add(e.Code, e.Context)
			}
			break
		}
	}
	return t.ok()
}
