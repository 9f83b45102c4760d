// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package cast

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Decimal casts numbers and numeric strings to float64. When Precision is
// set, values are rounded half away from zero to that many decimal places.
type Decimal struct {
	Precision *int
}

// Serialize implements Caster.
func (d Decimal) Serialize(v any) any { return d.cast(v) }

// Deserialize implements Caster.
func (d Decimal) Deserialize(v any) any { return d.cast(v) }

func (d Decimal) cast(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return Uncastable
	}
	if d.Precision != nil {
		f = roundTo(f, *d.Precision)
	}
	return f
}

// Integer parses integral input exactly and casts anything else through
// Decimal, truncating toward zero.
type Integer struct{}

// Serialize implements Caster.
func (i Integer) Serialize(v any) any { return castInt(v) }

// Deserialize implements Caster.
func (i Integer) Deserialize(v any) any { return castInt(v) }

// 2^63 is exact as a float64, unlike math.MaxInt64.
const twoPow63 = float64(1 << 63)

func castInt(v any) any {
	if n, ok, exact := toInt(v); exact {
		if !ok {
			return Uncastable
		}
		return n
	}
	f := Decimal{}.cast(v)
	n, ok := f.(float64)
	if !ok {
		return f
	}
	n = math.Trunc(n)
	if n >= twoPow63 || n < -twoPow63 {
		return Uncastable
	}
	return int64(n)
}

// toInt handles integer kinds and integer literals without going through
// float64. exact is false when v needs the decimal path.
func toInt(v any) (n int64, ok, exact bool) {
	switch val := v.(type) {
	case json.Number:
		return parseInt(string(val))
	case string:
		return parseInt(strings.TrimSpace(val))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false, true
		}
		return int64(u), true, true
	}
	return 0, false, false
}

func parseInt(s string) (int64, bool, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, true, true
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, false, true
	}
	return 0, false, false
}

func roundTo(f float64, places int) float64 {
	if places < 0 {
		return f
	}
	p := math.Pow10(places)
	r := math.Round(f*p) / p
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return f
	}
	return r
}

// toFloat parses numeric Go values, json.Number and numeric strings.
// NaN and infinities are rejected because they cannot be stored as JSON.
func toFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
