// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package cast converts custom field values between their logical Go form
// and the JSON-compatible form stored in the value column.
//
// Casters never panic. Input that cannot be converted yields one of the
// marker values below so validators can report it instead of silently
// storing a zero value.
package cast

// Caster converts between logical and storable representations for one
// field type.
type Caster interface {
	// Serialize converts a logical value into its storable form.
	Serialize(v any) any
	// Deserialize converts a storable value back into its logical form.
	Deserialize(v any) any
}

// Marker is a sentinel produced when a value cannot be cast.
type Marker string

// Markers returned by casters. Both encode as JSON null.
const (
	Uncastable Marker = "uncastable"
	NotAnArray Marker = "not_an_array"
)

// MarshalJSON encodes markers as null so they never leak into storage as text.
func (m Marker) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (m Marker) String() string { return string(m) }

// IsMarker reports whether v is one of the cast failure markers.
func IsMarker(v any) bool {
	_, ok := v.(Marker)
	return ok
}

// Identity is the caster used when a value has no resolvable field
// definition. It passes values through unchanged.
type Identity struct{}

// Serialize returns v unchanged.
func (Identity) Serialize(v any) any { return v }

// Deserialize returns v unchanged.
func (Identity) Deserialize(v any) any { return v }
