// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package cast

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	trueStrings  = map[string]bool{"true": true, "t": true, "1": true, "yes": true, "y": true, "on": true}
	falseStrings = map[string]bool{"false": true, "f": true, "0": true, "no": true, "n": true, "off": true}
)

// Boolean casts booleans, common boolean spellings and the numbers 0 and 1.
type Boolean struct{}

// Serialize implements Caster.
func (Boolean) Serialize(v any) any { return castBool(v) }

// Deserialize implements Caster.
func (Boolean) Deserialize(v any) any { return castBool(v) }

func castBool(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		switch {
		case s == "":
			return nil
		case trueStrings[s]:
			return true
		case falseStrings[s]:
			return false
		}
		return Uncastable
	}
	if f, ok := toFloat(v); ok {
		switch f {
		case 1:
			return true
		case 0:
			return false
		}
	}
	return Uncastable
}

// Text casts scalars to strings.
type Text struct{}

// Serialize implements Caster.
func (Text) Serialize(v any) any { return castString(v) }

// Deserialize implements Caster.
func (Text) Deserialize(v any) any { return castString(v) }

// Enum casts enum members. Members are stored as strings.
type Enum struct{}

// Serialize implements Caster.
func (Enum) Serialize(v any) any { return castString(v) }

// Deserialize implements Caster.
func (Enum) Deserialize(v any) any { return castString(v) }

func castString(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Marker:
		return val
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", v)
	case reflect.Float32, reflect.Float64:
		f, _ := toFloat(v)
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return Uncastable
}
