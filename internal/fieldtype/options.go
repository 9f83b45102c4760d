// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package fieldtype

import (
	"encoding/json"
	"maps"
	"math"
	"reflect"
	"time"

	"github.com/customfields/customfields/internal/cast"
)

// Option keys understood by the built-in types.
const (
	OptRequired      = "required"
	OptNullable      = "nullable"
	OptMin           = "min"
	OptMax           = "max"
	OptMinLength     = "min_length"
	OptMaxLength     = "max_length"
	OptMinSize       = "min_size"
	OptMaxSize       = "max_size"
	OptPrecision     = "precision"
	OptAllowedValues = "allowed_values"
)

// Options is the per-definition option map, stored as JSONB. Values arrive
// either as Go literals or decoded JSON (float64 or json.Number), so the
// getters accept any numeric representation. Getters never fail; malformed
// options are reported by a descriptor's CheckOptions.
type Options map[string]any

// Bool returns the option as a boolean. Absent or non-boolean is false.
func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// Float returns the option as a number, or nil when absent or not numeric.
func (o Options) Float(key string) *float64 {
	f, ok := number(o[key])
	if !ok {
		return nil
	}
	return &f
}

// Int returns the option as an integer, or nil when absent or not an
// integral number.
func (o Options) Int(key string) *int {
	f, ok := number(o[key])
	if !ok || f != math.Trunc(f) {
		return nil
	}
	n := int(f)
	return &n
}

// Time returns the option deserialized by c, or nil when absent or not a
// time.
func (o Options) Time(key string, c cast.Caster) *time.Time {
	v, ok := o[key]
	if !ok || v == nil {
		return nil
	}
	t, ok := c.Deserialize(v).(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// Strings returns the option as a string list. Non-string elements are
// skipped.
func (o Options) Strings(key string) []string {
	var out []string
	switch v := o[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// Clone returns a shallow copy.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case nil, bool, string:
		return 0, false
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32:
		return rv.Float(), true
	}
	return 0, false
}
