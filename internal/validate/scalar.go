// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package validate

import (
	"slices"
	"time"
	"unicode/utf8"
)

// Boolean validates boolean values. Required means the value must be true.
// Null is rejected unless Nullable is set.
type Boolean struct {
	Base
	Required bool
	Nullable bool
}

// Validate implements Validator.
func (v *Boolean) Validate(value any) bool {
	v.Reset()
	switch val := value.(type) {
	case nil:
		if v.Required {
			v.Add(CodeRequired)
		} else if !v.Nullable {
			v.Add(CodeExclusion)
		}
	case bool:
		if v.Required && !val {
			v.Add(CodeRequired)
		}
	default:
		v.Add(CodeInvalid)
	}
	return v.ok()
}

// Text validates strings by rune length.
type Text struct {
	Base
	Required  bool
	MinLength *int
	MaxLength *int
}

// Validate implements Validator.
func (v *Text) Validate(value any) bool {
	v.Reset()
	if value == nil {
		if v.Required {
			v.Add(CodeRequired)
		}
		return v.ok()
	}
	s, ok := value.(string)
	if !ok {
		v.Add(CodeInvalid)
		return v.ok()
	}
	if v.Required && s == "" {
		v.Add(CodeRequired)
	}
	n := utf8.RuneCountInString(s)
	if v.MinLength != nil && n < *v.MinLength {
		v.Add(CodeTooShort, map[string]any{"count": *v.MinLength})
	}
	if v.MaxLength != nil && n > *v.MaxLength {
		v.Add(CodeTooLong, map[string]any{"count": *v.MaxLength})
	}
	return v.ok()
}

// Number validates integer and decimal values against inclusive bounds.
type Number struct {
	Base
	Required bool
	Min      *float64
	Max      *float64
}

// Validate implements Validator.
func (v *Number) Validate(value any) bool {
	v.Reset()
	var n float64
	switch val := value.(type) {
	case nil:
		if v.Required {
			v.Add(CodeRequired)
		}
		return v.ok()
	case int64:
		n = float64(val)
	case float64:
		n = val
	default:
		v.Add(CodeInvalid)
		return v.ok()
	}
	if v.Min != nil && n < *v.Min {
		v.Add(CodeGreaterThanOrEqual, map[string]any{"count": *v.Min})
	}
	if v.Max != nil && n > *v.Max {
		v.Add(CodeLessThanOrEqual, map[string]any{"count": *v.Max})
	}
	return v.ok()
}

// Time validates dates and datetimes against inclusive bounds.
type Time struct {
	Base
	Required bool
	Min      *time.Time
	Max      *time.Time
	// Layout formats bounds in error context.
	Layout string
}

// Validate implements Validator.
func (v *Time) Validate(value any) bool {
	v.Reset()
	var t time.Time
	switch val := value.(type) {
	case nil:
		if v.Required {
			v.Add(CodeRequired)
		}
		return v.ok()
	case time.Time:
		t = val
	default:
		v.Add(CodeInvalid)
		return v.ok()
	}
	if v.Min != nil && t.Before(*v.Min) {
		v.Add(CodeGreaterThanOrEqual, map[string]any{"count": v.format(*v.Min)})
	}
	if v.Max != nil && t.After(*v.Max) {
		v.Add(CodeLessThanOrEqual, map[string]any{"count": v.format(*v.Max)})
	}
	return v.ok()
}

func (v *Time) format(t time.Time) string {
	layout := v.Layout
	if layout == "" {
		layout = time.RFC3339Nano
	}
	return t.UTC().Format(layout)
}

// Enum validates membership in AllowedValues.
type Enum struct {
	Base
	Required      bool
	AllowedValues []string
}

// Validate implements Validator.
func (v *Enum) Validate(value any) bool {
	v.Reset()
	switch val := value.(type) {
	case nil:
		if v.Required {
			v.Add(CodeRequired)
		}
	case string:
		if !slices.Contains(v.AllowedValues, val) {
			v.Add(CodeInclusion, map[string]any{"value": val})
		}
	default:
		v.Add(CodeInvalid)
	}
	return v.ok()
}
