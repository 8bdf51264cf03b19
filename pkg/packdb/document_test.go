package packdb_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/packdb/pkg/jsonv"
	"github.com/calvinalkan/packdb/pkg/packdb"
)

func Test_ParseDocument_Roundtrips_Canonical_Text(t *testing.T) {
	t.Parallel()

	doc, err := packdb.ParseDocument(nil, []byte(cowEntity))
	require.NoError(t, err)

	out, err := doc.Bytes()
	require.NoError(t, err)

	if diff := cmp.Diff(cowEntity, string(out)); diff != "" {
		t.Fatalf("serialize(parse(text)) mismatch (-want +got):\n%s", diff)
	}

	again, err := packdb.ParseDocument(nil, out)
	require.NoError(t, err)

	out2, err := again.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(out), string(out2))
	assert.False(t, doc.Dirty())
}

func Test_ParseDocument_Normalizes_Comments_And_Trailing_Commas(t *testing.T) {
	t.Parallel()

	doc, err := packdb.ParseDocument(nil, []byte(`{
	// the version
	"format_version": "1.12.0", /* inline */
	"list": [1, 2,],
}`))
	require.NoError(t, err)

	out, err := doc.Bytes()
	require.NoError(t, err)

	want := "{\n  \"format_version\": \"1.12.0\",\n  \"list\": [\n    1,\n    2\n  ]\n}\n"
	assert.Equal(t, want, string(out))
}

func Test_ParseDocument_Returns_ErrInvalidFormat_When_Malformed(t *testing.T) {
	t.Parallel()

	for _, text := range []string{`{"a": }`, `{"a": 1} {}`, ``, `{"a": 1, "a": 2}`} {
		doc, err := packdb.ParseDocument(nil, []byte(text))
		require.ErrorIs(t, err, packdb.ErrInvalidFormat, "input %q", text)
		assert.Nil(t, doc)
	}
}

func Test_NewDocument_Returns_ErrType_When_Root_Is_Scalar(t *testing.T) {
	t.Parallel()

	_, err := packdb.NewDocument(nil, "just a string")
	require.ErrorIs(t, err, packdb.ErrType)

	doc, err := packdb.NewDocument(nil, nil)
	require.NoError(t, err)

	v, err := doc.Value()
	require.NoError(t, err)
	assert.Equal(t, 0, v.(*jsonv.Object).Len())
}

func Test_ValueAt_Returns_Copy_When_Caller_Mutates_It(t *testing.T) {
	t.Parallel()

	doc, err := packdb.ParseDocument(nil, []byte(`{"a": {"b": 1}}`))
	require.NoError(t, err)

	v, err := doc.ValueAt("a")
	require.NoError(t, err)

	v.(*jsonv.Object).Set("b", json.Number("2"))

	got, err := doc.ValueAt("a/b")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), got)
	assert.False(t, doc.Dirty())
}

func Test_Document_Mutators_Mark_Dirty(t *testing.T) {
	t.Parallel()

	type step func(*packdb.Document) error

	steps := map[string]step{
		"set":     func(d *packdb.Document) error { return d.SetValueAt("a/c", 1) },
		"delete":  func(d *packdb.Document) error { return d.DeleteValueAt("a/b") },
		"pop": func(d *packdb.Document) error {
			_, err := d.PopValueAt("a/b")

			return err
		},
		"append":  func(d *packdb.Document) error { return d.AppendValueAt("list", "x") },
		"replace": func(d *packdb.Document) error { return d.SetValue(map[string]any{"z": true}) },
		"default": func(d *packdb.Document) error {
			_, err := d.SetDefaultAt("a/new", 1)

			return err
		},
	}

	for name, fn := range steps {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			doc, err := packdb.ParseDocument(nil, []byte(`{"a": {"b": 1}, "list": []}`))
			require.NoError(t, err)
			require.False(t, doc.Dirty())

			require.NoError(t, fn(doc))
			assert.True(t, doc.Dirty())
		})
	}
}

func Test_SetDefaultAt_Leaves_Existing_Value(t *testing.T) {
	t.Parallel()

	doc, err := packdb.ParseDocument(nil, []byte(`{"a": 1}`))
	require.NoError(t, err)

	wrote, err := doc.SetDefaultAt("a", 2)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.False(t, doc.Dirty())

	wrote, err = doc.SetDefaultAt("b", 2)
	require.NoError(t, err)
	assert.True(t, wrote)

	v, err := doc.ValueOr("b", nil)
	require.NoError(t, err)
	assert.Equal(t, json.Number("2"), v)
}

func Test_Document_Mutators_Leave_Value_Unchanged_When_They_Fail(t *testing.T) {
	t.Parallel()

	doc, err := packdb.ParseDocument(nil, []byte(`{"a": {"b": 1}, "s": "text"}`))
	require.NoError(t, err)

	before, err := doc.Bytes()
	require.NoError(t, err)

	require.ErrorIs(t, doc.SetValueAt("s/x", 1), packdb.ErrType)
	require.ErrorIs(t, doc.AppendValueAt("a", 1), packdb.ErrType)
	require.ErrorIs(t, doc.SetValueAt("missing/*/x", 1), packdb.ErrPath)
	require.ErrorIs(t, doc.SetValue(42), packdb.ErrType)

	_, err = doc.PopValueAt("a/zzz")
	require.ErrorIs(t, err, packdb.ErrNotFound)

	after, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.False(t, doc.Dirty())
}

func Test_ValueOr_Returns_Default_When_Absent(t *testing.T) {
	t.Parallel()

	doc, err := packdb.ParseDocument(nil, []byte(`{"a": 1}`))
	require.NoError(t, err)

	v, err := doc.ValueOr("nope", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	_, err = doc.ValueOr("[x", nil)
	require.ErrorIs(t, err, packdb.ErrPath)
}

func Test_SetValueAt_Writes_Where_ValueAt_Reads_When_Path_Has_DoubleStar(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")
	health := mustChild(t, cow, "components", "minecraft:health")

	require.NoError(t, cow.SetValueAt("**/minecraft:health/value", 20))

	v, err := health.ValueAt("value")
	require.NoError(t, err)
	assert.Equal(t, json.Number("20"), v)
	assert.Same(t, health, mustChild(t, cow, "components", "minecraft:health"))

	_, err = cow.ValueAt("minecraft:health")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_SetValue_Drops_Cached_Regions(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")

	health := mustChild(t, cow, "components", "minecraft:health")

	require.NoError(t, cow.SetValue(map[string]any{
		"minecraft:entity": map[string]any{
			"description": map[string]any{"identifier": "x:cow"},
			"components":  map[string]any{"minecraft:health": map[string]any{"value": 20}},
		},
	}))

	assert.Equal(t, packdb.Removed, health.State())

	_, err := health.ValueAt("value")
	require.ErrorIs(t, err, packdb.ErrRemoved)

	fresh := mustChild(t, cow, "components", "minecraft:health")
	assert.NotSame(t, health, fresh)

	v, err := fresh.ValueAt("value")
	require.NoError(t, err)
	assert.Equal(t, json.Number("20"), v)
}

func Test_Raw_Path_Delete_Detaches_Region_And_Keeps_Siblings(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")

	health := mustChild(t, cow, "components", "minecraft:health")
	physics := mustChild(t, cow, "components", "minecraft:physics")

	require.NoError(t, cow.DeleteValueAt("minecraft:entity/components/minecraft:health"))

	assert.Equal(t, packdb.Removed, health.State())
	assert.Equal(t, packdb.Live, physics.State())

	again := mustChild(t, cow, "components", "minecraft:physics")
	assert.Same(t, physics, again)
}
