// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package fieldtype

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/pkg/errutil"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(Descriptor{ID: "color"}))

	got, ok := registry.Lookup("color")
	require.True(t, ok)
	assert.Equal(t, "color", got.ID)

	_, ok = registry.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_Register_OverwritesExisting(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(Descriptor{ID: "color"}))
	require.NoError(t, registry.Register(Descriptor{ID: "color", Array: true}))

	got, ok := registry.Lookup("color")
	require.True(t, ok)
	assert.True(t, got.Array, "last registration wins")
	assert.Equal(t, []string{"color"}, registry.TypeIDs())
}

func TestRegistry_Register_EmptyID(t *testing.T) {
	err := NewRegistry().Register(Descriptor{ID: "  "})
	assert.ErrorIs(t, err, ErrInvalidTypeID)
}

func TestRegistry_BindEntityType(t *testing.T) {
	registry := NewDefaultRegistry(DefaultSettings())

	require.NoError(t, registry.BindEntityType("Author", Boolean, Text))
	require.NoError(t, registry.BindEntityType("Author", Integer))
	require.NoError(t, registry.BindEntityType("Book", Text))

	assert.Equal(t, []string{Boolean, Integer, Text}, registry.TypeIDsFor("Author"))
	assert.Equal(t, []string{"Author", "Book"}, registry.EntityTypesFor(Text))
	assert.Equal(t, []string{"Author", "Book"}, registry.EntityTypes())
	assert.True(t, registry.Allowed("Author", Integer))
	assert.False(t, registry.Allowed("Book", Integer))
}

func TestRegistry_BindEntityType_UnknownType(t *testing.T) {
	registry := NewDefaultRegistry(DefaultSettings())

	err := registry.BindEntityType("Author", Text, "hologram")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
	errutil.AssertErrorCode(t, err, "UNKNOWN_FIELD_TYPE")
	errutil.AssertErrorContext(t, err, "type_id", "hologram")

	assert.Empty(t, registry.TypeIDsFor("Author"), "failed binding leaves nothing bound")
}

func TestRegistry_AbsentKeysAreEmpty(t *testing.T) {
	registry := NewRegistry()

	assert.NotNil(t, registry.TypeIDsFor("Nobody"))
	assert.Empty(t, registry.TypeIDsFor("Nobody"))
	assert.NotNil(t, registry.EntityTypesFor("nothing"))
	assert.Empty(t, registry.EntityTypesFor("nothing"))
	assert.False(t, registry.Allowed("Nobody", "nothing"))
}

func TestRegistry_Freeze(t *testing.T) {
	registry := NewDefaultRegistry(DefaultSettings())
	require.NoError(t, registry.BindEntityType("Author", Text))
	registry.Freeze()

	assert.True(t, registry.Frozen())
	assert.ErrorIs(t, registry.Register(Descriptor{ID: "late"}), ErrRegistryFrozen)
	assert.ErrorIs(t, registry.BindEntityType("Author", Boolean), ErrRegistryFrozen)
	assert.Equal(t, []string{Text}, registry.TypeIDsFor("Author"))
}

func TestRegistry_MustLookup(t *testing.T) {
	registry := NewDefaultRegistry(DefaultSettings())

	assert.Equal(t, Enum, registry.MustLookup(Enum).ID)
	assert.Panics(t, func() { registry.MustLookup("hologram") })

	_, err := registry.Resolve("hologram")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry_ConcurrentReadsAfterFreeze(t *testing.T) {
	registry := NewDefaultRegistry(DefaultSettings())
	require.NoError(t, registry.BindEntityType("Author", Boolean, Text))
	registry.Freeze()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = registry.Lookup(Text)
				_ = registry.TypeIDsFor("Author")
				_ = registry.Allowed("Author", Boolean)
			}
		}()
	}
	wg.Wait()
}

func TestDescriptor_Defaults(t *testing.T) {
	d := Descriptor{ID: "opaque"}

	assert.Equal(t, cast.Identity{}, d.NewCaster(nil))
	assert.True(t, d.NewValidator(nil).Validate("anything"))
	assert.Nil(t, d.CheckOptions(Options{"whatever": 1}))
}
