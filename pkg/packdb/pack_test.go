package packdb_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/packdb/internal/fs"
	"github.com/calvinalkan/packdb/pkg/packdb"
)

func Test_OpenPack_Returns_Error_When_Config_Incomplete(t *testing.T) {
	t.Parallel()

	reg := mustRegistry(t)

	for name, cfg := range map[string]packdb.Config{
		"no root":   {Schema: reg, Pack: "behavior"},
		"no schema": {Root: t.TempDir(), Pack: "behavior"},
		"no side":   {Root: t.TempDir(), Schema: reg},
	} {
		_, err := packdb.OpenPack(cfg)
		require.Error(t, err, name)
	}
}

func Test_Documents_Returns_Docs_Sorted_By_Path(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)

	docs, err := pack.Documents("entity")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "entities/cow.json", docs[0].Path())
	assert.Equal(t, "entities/pig.json", docs[1].Path())

	for _, doc := range docs {
		assert.False(t, doc.Dirty())
		assert.Same(t, pack, doc.Pack())
	}
}

func Test_Documents_Returns_ErrNotFound_When_Kind_Belongs_To_Other_Side(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)

	_, err := pack.Documents("client_entity")
	require.ErrorIs(t, err, packdb.ErrNotFound)

	_, err = pack.Documents("component")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_Documents_Reports_Corrupt_Files_Next_To_Valid_Ones(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "bp")
	writeFile(t, root, "entities/cow.json", cowEntity)
	writeFile(t, root, "entities/broken.json", `{"minecraft:entity": }`)
	writeFile(t, root, "entities/notes.txt", "not a document")

	pack := openPack(t, mustRegistry(t), "behavior", root)

	docs, err := pack.Documents("entity")
	require.Error(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "entities/cow.json", docs[0].Path())

	var batch *packdb.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, "discover", batch.Op)
	require.Len(t, batch.Errs, 1)
	require.ErrorIs(t, err, packdb.ErrInvalidFormat)

	var docErr *packdb.Error
	require.ErrorAs(t, batch.Errs[0], &docErr)
	assert.Equal(t, "entities/broken.json", docErr.Path)
	assert.Equal(t, "entity", docErr.Kind)
}

func Test_Documents_Discovers_Once_When_Called_Repeatedly(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)

	first, err := pack.Documents("entity")
	require.NoError(t, err)

	writeFile(t, root, "entities/sheep.json", `{"minecraft:entity": {"description": {"identifier": "x:sheep"}}}`)

	second, err := pack.Documents("entity")
	require.NoError(t, err)
	require.Len(t, second, len(first))

	for i := range first {
		assert.Same(t, first[i], second[i])
	}

	_, err = pack.Get("entity", "x:sheep")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_Get_Returns_Same_Document_When_Looked_Up_Twice(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)

	a := mustDoc(t, pack, "entity", "x:cow")
	b := mustDoc(t, pack, "entity", "x:cow")
	assert.Same(t, a, b)

	byPath, err := pack.ByPath("entities/cow.json")
	require.NoError(t, err)
	assert.Same(t, a, byPath)
}

func Test_Get_Compares_Cleaned_Paths_When_Kind_Is_Path_Identified(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)

	loot := mustDoc(t, pack, "loot_table", "loot_tables/cow.json")
	assert.Same(t, loot, mustDoc(t, pack, "loot_table", "loot_tables/./cow.json"))

	id, err := loot.Identity()
	require.NoError(t, err)
	assert.Equal(t, "loot_tables/cow.json", id)
}

func Test_Get_Returns_Error_With_Context_When_Identity_Unknown(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)

	_, err := pack.Get("entity", "x:goat")
	require.ErrorIs(t, err, packdb.ErrNotFound)

	var docErr *packdb.Error
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, "entity", docErr.Kind)
	assert.Equal(t, "x:goat", docErr.ID)
}

func Test_Get_Follows_Identity_When_It_Changes(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")

	require.NoError(t, cow.SetValueAt("minecraft:entity/description/identifier", "x:bull"))

	assert.Same(t, cow, mustDoc(t, pack, "entity", "x:bull"))

	_, err := pack.Get("entity", "x:cow")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_Get_Finds_Document_When_Identity_Is_Duplicated(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	writeFile(t, root, "entities/cow_copy.json", cowEntity)

	docs, err := pack.Documents("entity")
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	doc := mustDoc(t, pack, "entity", "x:cow")

	id, err := doc.Identity()
	require.NoError(t, err)
	assert.Equal(t, "x:cow", id)
}

func Test_ByPath_Returns_ErrPath_When_Path_Leaves_Pack(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)

	for _, rel := range []string{"../x.json", "/etc/passwd", ""} {
		_, err := pack.ByPath(rel)
		require.ErrorIs(t, err, packdb.ErrPath, "path %q", rel)
	}

	_, err := pack.ByPath("entities/goat.json")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_Save_Writes_Nothing_When_Nothing_Changed(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	pack, _ := behaviorPack(t, withOutput(out))

	_, err := pack.Documents("entity")
	require.NoError(t, err)

	require.NoError(t, pack.Save(false))
	assert.False(t, fileExists(t, out, "entities/cow.json"))

	require.NoError(t, pack.Save(true))
	assert.Equal(t, cowEntity, readFile(t, out, "entities/cow.json"))
	assert.True(t, fileExists(t, out, "entities/pig.json"))
	assert.False(t, fileExists(t, out, "loot_tables/cow.json"), "undiscovered kinds are not loaded")
}

func Test_Save_Writes_Only_Dirty_Documents_To_Output(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	pack, root := behaviorPack(t, withOutput(out))

	cow := mustDoc(t, pack, "entity", "x:cow")
	_ = mustDoc(t, pack, "entity", "x:pig")

	require.NoError(t, cow.SetValueAt("format_version", "1.20.0"))
	require.NoError(t, pack.Save(false))

	assert.Contains(t, readFile(t, out, "entities/cow.json"), `"format_version": "1.20.0"`)
	assert.False(t, fileExists(t, out, "entities/pig.json"))
	assert.Equal(t, cowEntity, readFile(t, root, "entities/cow.json"))
	assert.False(t, cow.Dirty())
}

func Test_Save_Removes_Old_File_When_Document_Was_Renamed(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")

	require.NoError(t, cow.SetPath("entities/adult/cow.json"))
	assert.True(t, cow.Dirty())

	require.NoError(t, pack.Save(false))

	assert.False(t, fileExists(t, root, "entities/cow.json"))
	assert.Equal(t, cowEntity, readFile(t, root, "entities/adult/cow.json"))

	moved, err := pack.ByPath("entities/adult/cow.json")
	require.NoError(t, err)
	assert.Same(t, cow, moved)

	_, err = pack.ByPath("entities/cow.json")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_SetPath_Returns_ErrExists_When_Path_Taken(t *testing.T) {
	t.Parallel()

	pack, _ := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")
	_ = mustDoc(t, pack, "entity", "x:pig")

	err := cow.SetPath("entities/pig.json")
	require.ErrorIs(t, err, packdb.ErrExists)
	assert.Equal(t, "entities/cow.json", cow.Path())
	assert.False(t, cow.Dirty())
}

func Test_SetPath_Returns_ErrExists_When_Target_Kind_Was_Not_Discovered(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	pig := mustDoc(t, pack, "entity", "x:pig")

	err := pig.SetPath("loot_tables/cow.json")
	require.ErrorIs(t, err, packdb.ErrExists)
	assert.Equal(t, "entities/pig.json", pig.Path())

	require.NoError(t, pack.Save(false))
	assert.Equal(t, cowLoot, readFile(t, root, "loot_tables/cow.json"))

	loot, err := pack.Documents("loot_table")
	require.NoError(t, err)
	assert.Len(t, loot, 1)
}

func Test_SetPath_Returns_ErrExists_When_Unindexed_File_Is_There(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	writeFile(t, root, "entities/readme.txt", "hello")
	cow := mustDoc(t, pack, "entity", "x:cow")

	err := cow.SetPath("entities/readme.txt")
	require.ErrorIs(t, err, packdb.ErrExists)
	assert.False(t, cow.Dirty())
	assert.Equal(t, "hello", readFile(t, root, "entities/readme.txt"))
}

func Test_SetPath_Returns_ErrExists_When_Output_Dir_Has_File(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	writeFile(t, out, "entities/sheep.json", "{}\n")

	pack, _ := behaviorPack(t, withOutput(out))
	cow := mustDoc(t, pack, "entity", "x:cow")

	err := cow.SetPath("entities/sheep.json")
	require.ErrorIs(t, err, packdb.ErrExists)
	assert.Equal(t, "{}\n", readFile(t, out, "entities/sheep.json"))
}

func Test_SetPath_Moves_Back_When_Target_Is_The_Saved_File(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")

	require.NoError(t, cow.SetPath("entities/adult/cow.json"))
	require.NoError(t, cow.SetPath("entities/cow.json"))

	require.NoError(t, pack.Save(false))
	assert.Equal(t, cowEntity, readFile(t, root, "entities/cow.json"))
	assert.False(t, fileExists(t, root, "entities/adult/cow.json"))
}

func Test_Delete_Removes_Document_For_Good(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	cow := mustDoc(t, pack, "entity", "x:cow")
	health := mustChild(t, cow, "components", "minecraft:health")

	require.NoError(t, cow.Delete())

	assert.False(t, fileExists(t, root, "entities/cow.json"))
	assert.Equal(t, packdb.Removed, cow.State())
	assert.Equal(t, packdb.Removed, health.State())

	require.ErrorIs(t, cow.SetValueAt("format_version", "1.0.0"), packdb.ErrRemoved)
	require.NoError(t, cow.Save(true), "saving a removed document does nothing")
	assert.False(t, fileExists(t, root, "entities/cow.json"))

	_, err := pack.Get("entity", "x:cow")
	require.ErrorIs(t, err, packdb.ErrNotFound)

	docs, err := pack.Documents("entity")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "entities/pig.json", docs[0].Path())

	require.NoError(t, pack.Save(true))
	assert.False(t, fileExists(t, root, "entities/cow.json"))
}

func Test_MarkForDeletion_Deletes_Only_Under_Output_Dir(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	pack, root := behaviorPack(t, withOutput(out))
	cow := mustDoc(t, pack, "entity", "x:cow")

	require.NoError(t, cow.MarkForDeletion())
	assert.Equal(t, packdb.Pending, cow.State())

	v, err := cow.ValueAt("format_version")
	require.NoError(t, err)
	assert.Equal(t, "1.16.0", v)

	require.NoError(t, pack.Save(false))

	assert.Equal(t, packdb.Removed, cow.State())
	assert.True(t, fileExists(t, root, "entities/cow.json"))
}

func Test_Save_Isolates_Failures_When_One_Document_Cannot_Be_Written(t *testing.T) {
	t.Parallel()

	faults := fs.NewFaults(fs.NewReal())
	pack, root := behaviorPack(t, withFS(faults))

	cow := mustDoc(t, pack, "entity", "x:cow")
	pig := mustDoc(t, pack, "entity", "x:pig")
	loot := mustDoc(t, pack, "loot_table", "loot_tables/cow.json")

	for _, doc := range []*packdb.FileDocument{cow, pig, loot} {
		require.NoError(t, doc.SetValueAt("edited", true))
	}

	faults.SetPathState(filepath.Join(root, "entities", "pig.json"), fs.PathReadOnly)

	err := pack.Save(false)
	require.Error(t, err)

	var batch *packdb.BatchError
	require.ErrorAs(t, err, &batch)
	require.Len(t, batch.Errs, 1)
	assert.True(t, fs.IsInjected(batch.Errs[0]))

	var docErr *packdb.Error
	require.ErrorAs(t, batch.Errs[0], &docErr)
	assert.Equal(t, "entities/pig.json", docErr.Path)

	assert.False(t, cow.Dirty())
	assert.False(t, loot.Dirty())
	assert.True(t, pig.Dirty())
	assert.Contains(t, readFile(t, root, "entities/cow.json"), `"edited": true`)
	assert.Contains(t, readFile(t, root, "loot_tables/cow.json"), `"edited": true`)
	assert.Equal(t, pigEntity, readFile(t, root, "entities/pig.json"))

	faults.SetPathState(filepath.Join(root, "entities", "pig.json"), fs.PathNormal)

	require.NoError(t, pack.Save(false))
	assert.False(t, pig.Dirty())
	assert.Contains(t, readFile(t, root, "entities/pig.json"), `"edited": true`)
}

func Test_Create_Registers_Document_And_Save_Writes_It(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)

	sheep, err := pack.Create("entity", "entities/sheep.json", map[string]any{
		"format_version": "1.16.0",
		"minecraft:entity": map[string]any{
			"description": map[string]any{"identifier": "x:sheep"},
		},
	})
	require.NoError(t, err)
	assert.True(t, sheep.Dirty())
	assert.Same(t, sheep, mustDoc(t, pack, "entity", "x:sheep"))

	require.NoError(t, pack.Save(false))
	assert.Contains(t, readFile(t, root, "entities/sheep.json"), `"identifier": "x:sheep"`)
}

func Test_Create_Returns_ErrExists_When_Path_Taken(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	writeFile(t, root, "entities/readme.txt", "hello")

	_, err := pack.Create("entity", "entities/cow.json", nil)
	require.ErrorIs(t, err, packdb.ErrExists)

	_, err = pack.Create("entity", "entities/readme.txt", nil)
	require.ErrorIs(t, err, packdb.ErrExists)

	assert.Equal(t, "hello", readFile(t, root, "entities/readme.txt"))
}

func Test_FileDocument_Save_Returns_ErrFloating_When_Not_Registered(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)

	kind, ok := pack.Schema().Kind("entity")
	require.True(t, ok)

	doc, err := packdb.NewFileDocument(kind, "entities/goat.json", nil)
	require.NoError(t, err)

	require.ErrorIs(t, doc.Save(false), packdb.ErrFloating)

	require.NoError(t, pack.Register(doc))
	require.NoError(t, doc.Save(false))
	assert.Equal(t, "{}\n", readFile(t, root, "entities/goat.json"))
}

func Test_NewFileDocument_Returns_Error_When_Kind_Or_Path_Invalid(t *testing.T) {
	t.Parallel()

	reg := mustRegistry(t)

	component, _ := reg.Kind("component")
	_, err := packdb.NewFileDocument(component, "x.json", nil)
	require.ErrorIs(t, err, packdb.ErrType)

	entity, _ := reg.Kind("entity")
	_, err = packdb.NewFileDocument(entity, "../x.json", nil)
	require.ErrorIs(t, err, packdb.ErrPath)
}

func Test_Pack_Call_Invokes_Synthesized_Accessors(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	writeFile(t, root, "loot_tables/pig.json", `{"pools": [{"name": "pork"}]}`)

	got, err := pack.Call("entities")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = pack.Call("entity", "x:pig")
	require.NoError(t, err)
	assert.Equal(t, "entities/pig.json", got.(*packdb.FileDocument).Path())

	got, err = pack.Call("pools")
	require.NoError(t, err)
	assert.Equal(t, []string{"beef", "leather", "bones", "pork"}, identities(t, got.([]*packdb.Region)))

	got, err = pack.Call("add_loot_table", "loot_tables/sheep.json")
	require.NoError(t, err)
	assert.True(t, got.(*packdb.FileDocument).Dirty())

	_, err = pack.Call("entity")
	require.ErrorIs(t, err, packdb.ErrType)

	_, err = pack.Call("client_entities")
	require.ErrorIs(t, err, packdb.ErrNotFound)
}

func Test_Regions_Reports_Corrupt_Files_And_Returns_The_Rest(t *testing.T) {
	t.Parallel()

	pack, root := behaviorPack(t)
	writeFile(t, root, "loot_tables/broken.json", `{`)

	regions, err := pack.Regions("loot_table", "pools")
	require.ErrorIs(t, err, packdb.ErrInvalidFormat)
	assert.Len(t, regions, 3)

	var batch *packdb.BatchError
	require.True(t, errors.As(err, &batch))
	assert.Equal(t, "regions", batch.Op)
}
