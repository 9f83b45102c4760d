// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package validate

// Array validates element count and every element with the validator built
// by Elem. Element errors carry the element position as "index" in their
// context. A null array counts as empty; Required rejects empty arrays.
type Array struct {
	Base
	Required bool
	MinSize  *int
	MaxSize  *int
	Elem     func() Validator
}

// Validate implements Validator.
func (v *Array) Validate(value any) bool {
	v.Reset()
	var items []any
	switch val := value.(type) {
	case nil:
	case []any:
		items = val
	default:
		v.Add(CodeInvalid)
		return v.ok()
	}
	if v.Required && len(items) == 0 {
		v.Add(CodeRequired)
	}
	if v.MinSize != nil && len(items) < *v.MinSize {
		v.Add(CodeSizeTooShort, map[string]any{"count": *v.MinSize})
	}
	if v.MaxSize != nil && len(items) > *v.MaxSize {
		v.Add(CodeSizeTooLong, map[string]any{"count": *v.MaxSize})
	}
	if v.Elem == nil {
		return v.ok()
	}
	elem := v.Elem()
	for i, item := range items {
		if elem.Validate(item) {
			continue
		}
		for _, e := range elem.Errors() {
			v.Add(e.Code, e.Context, map[string]any{"index": i})
		}
	}
	return v.ok()
}
