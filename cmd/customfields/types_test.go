// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customfields/customfields/internal/fieldtype"
)

const typesConfig = `
entity_types:
  Author:
    table: authors
    field_types: ["boolean", "text"]
  Book:
    table: books
    field_types: ["text*"]
`

func TestTypesCommand_ForEntityType(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t, typesConfig), "-o", "json", "types", "Author")
	require.NoError(t, err)

	var views []typeView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)

	assert.Equal(t, fieldtype.Boolean, views[0].ID)
	assert.Equal(t, []string{"Author"}, views[0].EntityTypes)
	assert.False(t, views[0].Array)

	assert.Equal(t, fieldtype.Text, views[1].ID)
	assert.Equal(t, []string{"Author", "Book"}, views[1].EntityTypes)
	assert.Contains(t, views[1].Operators, "~*")
}

func TestTypesCommand_AllTypes(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t, typesConfig), "-o", "json", "types")
	require.NoError(t, err)

	var views []typeView
	require.NoError(t, json.Unmarshal([]byte(out), &views))

	byID := make(map[string]typeView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	require.Contains(t, byID, fieldtype.IntegerArray)
	assert.True(t, byID[fieldtype.IntegerArray].Array)
	assert.Empty(t, byID[fieldtype.IntegerArray].EntityTypes)
	assert.Contains(t, byID[fieldtype.IntegerArray].Operators, "|=")
	assert.Equal(t, []string{"Book"}, byID[fieldtype.TextArray].EntityTypes)
}

func TestTypesCommand_UnknownEntityType(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t, typesConfig), "-o", "json", "types", "Publisher")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestTypesCommand_InvalidOutput(t *testing.T) {
	_, _, err := execute(t, "--config", writeConfig(t, typesConfig), "-o", "xml", "types")
	require.Error(t, err)
}
