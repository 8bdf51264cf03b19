package packdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/packdb/pkg/packdb"
)

func Test_LoadSchema_Returns_ErrSchema_When_Schema_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":        `{"kinds": `,
		"unknown field":   `{"kinds": {"a": {"colour": "red"}}}`,
		"pack no rule":    `{"kinds": {"a": {"pack": "behavior"}}}`,
		"rule no pack":    `{"kinds": {"a": {"discover": {"folder": "a"}}}}`,
		"bad folder":      `{"kinds": {"a": {"pack": "behavior", "discover": {"folder": "../a"}}}}`,
		"unknown link":    `{"kinds": {"a": {"pack": "behavior", "discover": {"folder": "a"}, "link": "b"}}}`,
		"same pack link":  `{"kinds": {"a": {"pack": "p", "discover": {"folder": "a"}, "link": "b"}, "b": {"pack": "p", "discover": {"folder": "b"}}}}`,
		"wildcard id":     `{"kinds": {"a": {"pack": "p", "discover": {"folder": "a"}, "identity": "x/*"}}}`,
		"root id":         `{"kinds": {"a": {"pack": "p", "discover": {"folder": "a"}, "identity": "**"}}}`,
		"bad type":        `{"kinds": {"a": {"properties": [{"name": "n", "path": "n", "type": "date"}]}}}`,
		"bad default":     `{"kinds": {"a": {"properties": [{"name": "n", "path": "n", "type": "number", "default": "x"}]}}}`,
		"dup property":    `{"kinds": {"a": {"properties": [{"name": "n", "path": "n"}, {"name": "n", "path": "m"}]}}}`,
		"unknown parent":  `{"kinds": {"a": {}}, "collections": [{"parent": "z", "name": "c", "kind": "a", "path": "*"}]}`,
		"unknown kind":    `{"kinds": {"a": {}}, "collections": [{"parent": "a", "name": "c", "kind": "z", "path": "*"}]}`,
		"file member":     `{"kinds": {"a": {}, "f": {"pack": "p", "discover": {"folder": "f"}}}, "collections": [{"parent": "a", "name": "c", "kind": "f", "path": "*"}]}`,
		"no trailing *":   `{"kinds": {"a": {}}, "collections": [{"parent": "a", "name": "c", "kind": "a", "path": "x/y"}]}`,
		"early *":         `{"kinds": {"a": {}}, "collections": [{"parent": "a", "name": "c", "kind": "a", "path": "*/x/*"}]}`,
		"key slot no id":  `{"kinds": {"a": {}}, "collections": [{"parent": "a", "name": "c", "kind": "a", "path": "*", "key_slot": true}]}`,
		"flatten no file": `{"kinds": {"a": {}}, "collections": [{"parent": "a", "name": "c", "kind": "a", "path": "*", "flatten": true}]}`,
		"dup collection":  `{"kinds": {"a": {}}, "collections": [{"parent": "a", "name": "c", "kind": "a", "path": "*"}, {"parent": "a", "name": "c", "kind": "a", "path": "x/*"}]}`,
		"accessor clash":  `{"kinds": {"a": {"properties": [{"name": "items", "path": "n"}]}}, "collections": [{"parent": "a", "name": "items", "kind": "a", "path": "*"}]}`,
		"pack clash":      `{"kinds": {"a": {"pack": "p", "discover": {"folder": "a"}, "plural": "b"}, "b": {"pack": "p", "discover": {"folder": "b"}}}}`,
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg, err := packdb.LoadSchema([]byte(text))
			require.ErrorIs(t, err, packdb.ErrSchema)
			assert.Nil(t, reg)
		})
	}
}

func Test_Compile_Synthesizes_Kind_Accessors(t *testing.T) {
	t.Parallel()

	reg := mustRegistry(t)

	entity, ok := reg.Kind("entity")
	require.True(t, ok)

	var names []string
	for _, a := range entity.Accessors() {
		names = append(names, a.Name)
	}

	for _, want := range []string{
		"components", "component", "add_component",
		"component_groups", "component_group", "add_component_group",
		"events", "event", "add_event",
		"format_version", "set_format_version",
		"identifier", "set_identifier",
	} {
		assert.Contains(t, names, want)
	}

	a, ok := entity.Accessor("add_component")
	require.True(t, ok)
	assert.Equal(t, packdb.OpCreate, a.Op)
	assert.Equal(t, "components", a.Collection.Name())
	assert.Equal(t, "component", a.Collection.Kind().Name())
}

func Test_Compile_Synthesizes_Pack_Accessors_Per_Side(t *testing.T) {
	t.Parallel()

	reg := mustRegistry(t)

	assert.Equal(t, []string{"behavior", "resource"}, reg.Packs())

	var names []string
	for _, a := range reg.PackAccessors("behavior") {
		names = append(names, a.Name)
	}

	assert.Equal(t, []string{
		"entities", "entity", "add_entity",
		"loot_tables", "loot_table", "add_loot_table", "pools",
	}, names)

	_, ok := reg.PackAccessor("resource", "client_entities")
	assert.True(t, ok)

	_, ok = reg.PackAccessor("resource", "entities")
	assert.False(t, ok)
}

func Test_Compile_Resolves_Links_And_File_Kinds(t *testing.T) {
	t.Parallel()

	reg := mustRegistry(t)

	entity, _ := reg.Kind("entity")
	client, _ := reg.Kind("client_entity")
	loot, _ := reg.Kind("loot_table")
	component, _ := reg.Kind("component")

	assert.Same(t, client, entity.Link())
	assert.Same(t, entity, client.Link())
	assert.True(t, loot.PathIdentified())
	assert.False(t, entity.PathIdentified())
	assert.False(t, component.IsFile())
	assert.Equal(t, packdb.Rule{Folder: "loot_tables", Extension: ".json"}, loot.Rule())

	pools, ok := loot.Collection("pools")
	require.True(t, ok)
	assert.Equal(t, "pools/*", pools.Template())
}

func Test_Call_Invokes_Kind_Accessors_On_Document(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")

	got, err := packdb.Call(cow, "components")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = packdb.Call(cow, "component", "minecraft:physics")
	require.NoError(t, err)
	assert.Same(t, mustChild(t, cow, "components", "minecraft:physics"), got)

	got, err = packdb.Call(cow, "add_event", "x:shear", map[string]any{"sequence": []any{}})
	require.NoError(t, err)
	assert.Equal(t, "minecraft:entity/events/x:shear", got.(*packdb.Region).Address())

	_, err = packdb.Call(cow, "component", 7)
	require.ErrorIs(t, err, packdb.ErrType)

	_, err = packdb.Call(cow, "components", "extra")
	require.ErrorIs(t, err, packdb.ErrType)

	_, err = packdb.Call(cow, "pools")
	require.ErrorIs(t, err, packdb.ErrNotFound)

	_, err = packdb.Call(cow, "entities")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_Version_Property_Falls_Back_To_Default(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")

	got, err := packdb.Call(cow, "format_version")
	require.NoError(t, err)
	assert.Equal(t, packdb.FormatVersion{Major: 1, Minor: 16}, got)

	fresh, err := pack.Create("entity", "entities/goat.json", nil)
	require.NoError(t, err)

	got, err = fresh.Property("format_version")
	require.NoError(t, err)
	assert.Equal(t, packdb.FormatVersion{Major: 1, Minor: 8}, got)

	_, err = fresh.ValueAt("format_version")
	require.ErrorIs(t, err, packdb.ErrNotFound, "defaults are not written")

	require.NoError(t, fresh.SetProperty("format_version", packdb.FormatVersion{Major: 1, Minor: 20, Patch: 1}))

	raw, err := fresh.ValueAt("format_version")
	require.NoError(t, err)
	assert.Equal(t, "1.20.1", raw)

	require.ErrorIs(t, fresh.SetProperty("format_version", "one"), packdb.ErrType)
	require.ErrorIs(t, fresh.SetProperty("identifier", 5), packdb.ErrType)
}
