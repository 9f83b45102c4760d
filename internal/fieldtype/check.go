// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package fieldtype

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/internal/validate"
)

// checker accumulates option errors for CheckOptions implementations.
type checker struct {
	opts Options
	errs []validate.Error
}

// newChecker reports every option key not in allowed as not_allowed.
func newChecker(opts Options, allowed ...string) *checker {
	c := &checker{opts: opts}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !slices.Contains(allowed, k) {
			c.add(validate.CodeNotAllowed, k, nil)
		}
	}
	return c
}

func (c *checker) add(code validate.Code, option string, ctx map[string]any) {
	merged := map[string]any{"option": option}
	maps.Copy(merged, ctx)
	c.errs = append(c.errs, validate.Error{Code: code, Context: merged})
}

func (c *checker) present(key string) bool {
	v, ok := c.opts[key]
	return ok && v != nil
}

func (c *checker) boolean(key string) {
	if !c.present(key) {
		return
	}
	if _, ok := c.opts[key].(bool); !ok {
		c.add(validate.CodeInvalid, key, nil)
	}
}

func (c *checker) number(key string) *float64 {
	if !c.present(key) {
		return nil
	}
	f, ok := number(c.opts[key])
	if !ok {
		c.add(validate.CodeInvalid, key, nil)
		return nil
	}
	return &f
}

// count reads a non-negative integer option.
func (c *checker) count(key string) *int {
	f := c.number(key)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) {
		c.add(validate.CodeInvalid, key, nil)
		return nil
	}
	if *f < 0 {
		c.add(validate.CodeGreaterThanOrEqual, key, map[string]any{"count": 0})
		return nil
	}
	n := int(*f)
	return &n
}

func (c *checker) ordered(minKey string, lo, hi *int) {
	if lo != nil && hi != nil && *lo > *hi {
		c.add(validate.CodeLessThanOrEqual, minKey, map[string]any{"count": *hi})
	}
}

func (c *checker) time(key string, tc cast.Caster) *time.Time {
	if !c.present(key) {
		return nil
	}
	t := c.opts.Time(key, tc)
	if t == nil {
		c.add(validate.CodeInvalid, key, nil)
	}
	return t
}

func (c *checker) precision(maxDigits int) {
	p := c.count(OptPrecision)
	if p != nil && *p > maxDigits {
		c.add(validate.CodeLessThanOrEqual, OptPrecision, map[string]any{"count": maxDigits})
	}
}

func (c *checker) allowedValues() {
	raw, ok := c.opts[OptAllowedValues]
	if !ok || raw == nil {
		c.add(validate.CodeBlank, OptAllowedValues, nil)
		return
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		c.add(validate.CodeInvalid, OptAllowedValues, nil)
		return
	}
	if len(items) == 0 {
		c.add(validate.CodeBlank, OptAllowedValues, nil)
		return
	}

	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			c.add(validate.CodeInvalid, OptAllowedValues, map[string]any{"index": i})
			continue
		}
		if _, dup := seen[s]; dup {
			c.add(validate.CodeTaken, OptAllowedValues, map[string]any{"index": i, "value": s})
			continue
		}
		seen[s] = struct{}{}
	}
}
