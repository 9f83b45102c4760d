// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package fieldtype

import (
	"time"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/internal/finder"
	"github.com/customfields/customfields/internal/validate"
)

// Built-in type IDs.
const (
	Boolean       = "boolean"
	Text          = "text"
	TextArray     = "text_array"
	Integer       = "integer"
	IntegerArray  = "integer_array"
	Decimal       = "decimal"
	DecimalArray  = "decimal_array"
	Date          = "date"
	DateArray     = "date_array"
	DateTime      = "datetime"
	DateTimeArray = "datetime_array"
	Enum          = "enum"
	EnumArray     = "enum_array"
)

// MaxDecimalPrecision bounds the decimal precision option.
const MaxDecimalPrecision = 15

// Settings are process-wide defaults for the built-in types.
type Settings struct {
	// DateTimePrecision is the sub-second digit count for datetime values
	// whose definition sets no precision option.
	DateTimePrecision int
}

// DefaultSettings returns settings with microsecond datetime precision.
func DefaultSettings() Settings {
	return Settings{DateTimePrecision: cast.MaxDateTimePrecision}
}

// NewDefaultRegistry returns an unfrozen registry holding the built-in
// types and no entity type bindings.
func NewDefaultRegistry(s Settings) *Registry {
	r := NewRegistry()
	for _, d := range Builtins(s) {
		r.MustRegister(d)
	}
	return r
}

// Builtins returns the built-in descriptors.
func Builtins(s Settings) []Descriptor {
	scalars := []scalar{
		booleanType(),
		textType(),
		integerType(),
		decimalType(),
		dateType(),
		dateTimeType(s),
		enumType(),
	}
	out := make([]Descriptor, 0, 2*len(scalars))
	for _, sc := range scalars {
		out = append(out, sc.descriptor())
		if sc.arraySpec != nil {
			out = append(out, sc.arrayDescriptor())
		}
	}
	return out
}

// scalar describes one built-in scalar type; array variants are derived
// from it.
type scalar struct {
	id        string
	options   []string
	caster    func(Options) cast.Caster
	validator func(Options) validate.Validator
	check     func(*checker)
	spec      *finder.Spec
	arraySpec *finder.Spec
}

func (sc scalar) descriptor() Descriptor {
	return Descriptor{
		ID:        sc.id,
		Caster:    sc.caster,
		Validator: sc.validator,
		Check: func(opts Options) []validate.Error {
			c := newChecker(opts, sc.options...)
			sc.check(c)
			return c.errs
		},
		Finder: sc.spec,
	}
}

func (sc scalar) arrayDescriptor() Descriptor {
	allowed := append([]string{OptMinSize, OptMaxSize}, sc.options...)
	return Descriptor{
		ID:    sc.id + "_array",
		Array: true,
		Caster: func(opts Options) cast.Caster {
			return cast.Array{Elem: sc.caster(opts)}
		},
		Validator: func(opts Options) validate.Validator {
			elemOpts := opts.Clone()
			elemOpts[OptRequired] = true
			return &validate.Array{
				Required: opts.Bool(OptRequired),
				MinSize:  opts.Int(OptMinSize),
				MaxSize:  opts.Int(OptMaxSize),
				Elem:     func() validate.Validator { return sc.validator(elemOpts) },
			}
		},
		Check: func(opts Options) []validate.Error {
			c := newChecker(opts, allowed...)
			minSize := c.count(OptMinSize)
			maxSize := c.count(OptMaxSize)
			c.ordered(OptMinSize, minSize, maxSize)
			sc.check(c)
			return c.errs
		},
		Finder: sc.arraySpec,
	}
}

func booleanType() scalar {
	return scalar{
		id:      Boolean,
		options: []string{OptRequired, OptNullable},
		caster:  func(Options) cast.Caster { return cast.Boolean{} },
		validator: func(o Options) validate.Validator {
			return &validate.Boolean{Required: o.Bool(OptRequired), Nullable: o.Bool(OptNullable)}
		},
		check: func(c *checker) {
			c.boolean(OptRequired)
			c.boolean(OptNullable)
		},
		spec: finder.Scalar("boolean", finder.EqualityOps),
	}
}

func textType() scalar {
	return scalar{
		id:      Text,
		options: []string{OptRequired, OptMinLength, OptMaxLength},
		caster:  func(Options) cast.Caster { return cast.Text{} },
		validator: func(o Options) validate.Validator {
			return &validate.Text{
				Required:  o.Bool(OptRequired),
				MinLength: o.Int(OptMinLength),
				MaxLength: o.Int(OptMaxLength),
			}
		},
		check: func(c *checker) {
			c.boolean(OptRequired)
			minLen := c.count(OptMinLength)
			maxLen := c.count(OptMaxLength)
			c.ordered(OptMinLength, minLen, maxLen)
		},
		spec:      finder.Scalar("text", finder.TextOps),
		arraySpec: finder.ArrayOf("text", finder.MembershipOps),
	}
}

func numberValidator(o Options) validate.Validator {
	return &validate.Number{Required: o.Bool(OptRequired), Min: o.Float(OptMin), Max: o.Float(OptMax)}
}

func checkBounds(c *checker) {
	c.boolean(OptRequired)
	lo := c.number(OptMin)
	hi := c.number(OptMax)
	if lo != nil && hi != nil && *lo > *hi {
		c.add(validate.CodeLessThanOrEqual, OptMin, map[string]any{"count": *hi})
	}
}

func integerType() scalar {
	return scalar{
		id:        Integer,
		options:   []string{OptRequired, OptMin, OptMax},
		caster:    func(Options) cast.Caster { return cast.Integer{} },
		validator: numberValidator,
		check:     checkBounds,
		spec:      finder.Scalar("bigint", finder.ComparisonOps),
		arraySpec: finder.ArrayOf("bigint", finder.MembershipOps, finder.ElementRangeOps),
	}
}

func decimalType() scalar {
	return scalar{
		id:      Decimal,
		options: []string{OptRequired, OptMin, OptMax, OptPrecision},
		caster: func(o Options) cast.Caster {
			return cast.Decimal{Precision: o.Int(OptPrecision)}
		},
		validator: numberValidator,
		check: func(c *checker) {
			checkBounds(c)
			c.precision(MaxDecimalPrecision)
		},
		spec:      finder.Scalar("numeric", finder.ComparisonOps),
		arraySpec: finder.ArrayOf("numeric", finder.MembershipOps, finder.ElementRangeOps),
	}
}

func timeValidator(c cast.Caster, layout string) func(Options) validate.Validator {
	return func(o Options) validate.Validator {
		return &validate.Time{
			Required: o.Bool(OptRequired),
			Min:      o.Time(OptMin, c),
			Max:      o.Time(OptMax, c),
			Layout:   layout,
		}
	}
}

func checkTimeBounds(c *checker, tc cast.Caster) {
	c.boolean(OptRequired)
	lo := c.time(OptMin, tc)
	hi := c.time(OptMax, tc)
	if lo != nil && hi != nil && lo.After(*hi) {
		c.add(validate.CodeLessThanOrEqual, OptMin, map[string]any{"count": tc.Serialize(*hi)})
	}
}

func dateType() scalar {
	return scalar{
		id:        Date,
		options:   []string{OptRequired, OptMin, OptMax},
		caster:    func(Options) cast.Caster { return cast.Date{} },
		validator: timeValidator(cast.Date{}, cast.DateLayout),
		check:     func(c *checker) { checkTimeBounds(c, cast.Date{}) },
		spec:      finder.Scalar("date", finder.ComparisonOps),
		arraySpec: finder.ArrayOf("date", finder.MembershipOps, finder.ElementRangeOps),
	}
}

func dateTimeType(s Settings) scalar {
	caster := func(o Options) cast.Caster {
		p := s.DateTimePrecision
		if op := o.Int(OptPrecision); op != nil {
			p = *op
		}
		return cast.NewDateTime(p)
	}
	return scalar{
		id:      DateTime,
		options: []string{OptRequired, OptMin, OptMax, OptPrecision},
		caster:  caster,
		validator: func(o Options) validate.Validator {
			return timeValidator(caster(o), time.RFC3339Nano)(o)
		},
		check: func(c *checker) {
			checkTimeBounds(c, caster(c.opts))
			c.precision(cast.MaxDateTimePrecision)
		},
		spec:      finder.Scalar("timestamptz", finder.ComparisonOps),
		arraySpec: finder.ArrayOf("timestamptz", finder.MembershipOps, finder.ElementRangeOps),
	}
}

func enumType() scalar {
	return scalar{
		id:      Enum,
		options: []string{OptRequired, OptAllowedValues},
		caster:  func(Options) cast.Caster { return cast.Enum{} },
		validator: func(o Options) validate.Validator {
			return &validate.Enum{Required: o.Bool(OptRequired), AllowedValues: o.Strings(OptAllowedValues)}
		},
		check: func(c *checker) {
			c.boolean(OptRequired)
			c.allowedValues()
		},
		spec:      finder.Scalar("text", finder.EqualityOps),
		arraySpec: finder.ArrayOf("text", finder.MembershipOps),
	}
}
