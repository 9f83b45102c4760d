// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package cast

import (
	"strings"
	"time"
)

// MaxDateTimePrecision is the number of sub-second digits PostgreSQL keeps
// for timestamp columns.
const MaxDateTimePrecision = 6

// DateLayout is the storable encoding of date values.
const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	DateLayout,
}

// ClampPrecision limits p to 0..MaxDateTimePrecision.
func ClampPrecision(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxDateTimePrecision {
		return MaxDateTimePrecision
	}
	return p
}

// Date casts to a date-only time.Time at UTC midnight. Dates are stored as
// YYYY-MM-DD strings.
type Date struct{}

// Serialize implements Caster.
func (Date) Serialize(v any) any {
	t, ok, res := parseTime(v)
	if !ok {
		return res
	}
	return t.Format(DateLayout)
}

// Deserialize implements Caster.
func (Date) Deserialize(v any) any {
	t, ok, res := parseTime(v)
	if !ok {
		return res
	}
	return t
}

func parseTime(v any) (time.Time, bool, any) {
	var t time.Time
	switch val := v.(type) {
	case nil:
		return t, false, nil
	case time.Time:
		t = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return t, false, nil
		}
		parsed, ok := parseTimeString(s)
		if !ok {
			return t, false, Uncastable
		}
		t = parsed
	default:
		return t, false, Uncastable
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true, nil
}

// DateTime casts to a UTC time.Time rounded to Precision sub-second digits.
// Values are stored as ISO-8601 strings with exactly Precision fractional
// digits.
type DateTime struct {
	Precision int
}

// NewDateTime returns a DateTime caster with precision clamped to the
// storage ceiling.
func NewDateTime(precision int) DateTime {
	return DateTime{Precision: ClampPrecision(precision)}
}

// Serialize implements Caster.
func (d DateTime) Serialize(v any) any {
	t, ok, res := d.parse(v)
	if !ok {
		return res
	}
	return t.Format(d.layout())
}

// Deserialize implements Caster.
func (d DateTime) Deserialize(v any) any {
	t, ok, res := d.parse(v)
	if !ok {
		return res
	}
	return t
}

func (d DateTime) parse(v any) (time.Time, bool, any) {
	var t time.Time
	switch val := v.(type) {
	case nil:
		return t, false, nil
	case time.Time:
		t = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return t, false, nil
		}
		parsed, ok := parseTimeString(s)
		if !ok {
			return t, false, Uncastable
		}
		t = parsed
	default:
		return t, false, Uncastable
	}
	return t.UTC().Round(d.unit()), true, nil
}

func (d DateTime) unit() time.Duration {
	unit := time.Second
	for i := 0; i < ClampPrecision(d.Precision); i++ {
		unit /= 10
	}
	return unit
}

func (d DateTime) layout() string {
	p := ClampPrecision(d.Precision)
	if p == 0 {
		return "2006-01-02T15:04:05Z07:00"
	}
	return "2006-01-02T15:04:05." + strings.Repeat("0", p) + "Z07:00"
}

func parseTimeString(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
