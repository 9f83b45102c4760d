// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package postgres

import (
	"bytes"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/fieldtype"
)

// encodeJSON encodes a storable value for a jsonb column. nil encodes as
// the JSON null literal.
func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, oops.With("operation", "encode jsonb").Wrap(err)
	}
	return b, nil
}

// decodeJSON decodes a jsonb column. Numbers are kept as json.Number so
// casters see the stored digits.
func decodeJSON(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, oops.With("operation", "decode jsonb").Wrap(err)
	}
	return v, nil
}

func decodeOptions(b []byte) (fieldtype.Options, error) {
	v, err := decodeJSON(b)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fieldtype.Options{}, nil
	}
	return fieldtype.Options(m), nil
}

func encodeOptions(o fieldtype.Options) ([]byte, error) {
	if o == nil {
		o = fieldtype.Options{}
	}
	return encodeJSON(map[string]any(o))
}
