// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package cast

import "reflect"

// Array applies Elem to every element of a slice or array. Anything that is
// not a slice or array, strings and maps included, yields NotAnArray.
type Array struct {
	Elem Caster
}

// Serialize implements Caster.
func (a Array) Serialize(v any) any {
	return a.each(v, a.Elem.Serialize)
}

// Deserialize implements Caster.
func (a Array) Deserialize(v any) any {
	return a.each(v, a.Elem.Deserialize)
}

func (a Array) each(v any, fn func(any) any) any {
	if v == nil {
		return nil
	}
	if items, ok := v.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fn(item)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return NotAnArray
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = fn(rv.Index(i).Interface())
	}
	return out
}
