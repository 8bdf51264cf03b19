package packdb_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/packdb/internal/fs"
	"github.com/calvinalkan/packdb/pkg/packdb"
)

const testSchema = `{
  // Two packs, linked by identity.
  "kinds": {
    "entity": {
      "pack": "behavior",
      "discover": {"folder": "entities"},
      "identity": "minecraft:entity/description/identifier",
      "link": "client_entity",
      "plural": "entities",
      "properties": [
        {"name": "format_version", "path": "format_version", "type": "version", "default": "1.8.0"},
        {"name": "identifier", "path": "minecraft:entity/description/identifier", "type": "string"},
      ],
    },
    "loot_table": {"pack": "behavior", "discover": {"folder": "loot_tables"}},
    "client_entity": {
      "pack": "resource",
      "discover": {"folder": "entity"},
      "identity": "minecraft:client_entity/description/identifier",
      "link": "entity",
      "plural": "client_entities",
    },
    "component": {
      "properties": [{"name": "value", "path": "value", "type": "number"}],
    },
    "component_group": {},
    "event": {},
    "pool": {},
    "entry": {},
  },
  "collections": [
    {"parent": "entity", "name": "components", "kind": "component", "path": "minecraft:entity/components/*"},
    {"parent": "entity", "name": "component_groups", "kind": "component_group", "path": "minecraft:entity/component_groups/*"},
    {"parent": "component_group", "name": "components", "kind": "component", "path": "*"},
    {"parent": "entity", "name": "events", "kind": "event", "path": "minecraft:entity/events/*"},
    {"parent": "loot_table", "name": "pools", "kind": "pool", "path": "pools/*", "identity": "name", "flatten": true},
    {"parent": "pool", "name": "entries", "kind": "entry", "path": "entries/*", "identity": "name"},
  ],
}`

// cowEntity is in canonical form, so saving it unchanged is byte-identical.
const cowEntity = `{
  "format_version": "1.16.0",
  "minecraft:entity": {
    "description": {
      "identifier": "x:cow"
    },
    "component_groups": {
      "baby": {
        "minecraft:is_baby": {},
        "minecraft:scale": {
          "value": 0.5
        }
      }
    },
    "components": {
      "minecraft:health": {
        "value": 10
      },
      "minecraft:physics": {},
      "minecraft:movement": {
        "value": 0.25
      }
    },
    "events": {
      "grow": {
        "add": {
          "component_groups": [
            "adult"
          ]
        }
      }
    }
  }
}
`

const pigEntity = `{
  "format_version": "1.16.0",
  "minecraft:entity": {
    "description": {"identifier": "x:pig"},
    "components": {}
  }
}
`

const cowLoot = `{
  "pools": [
    {"name": "beef", "rolls": 1, "entries": [{"name": "raw_beef"}, {"name": "cooked_beef"}]},
    {"name": "leather", "rolls": 1},
    {"name": "bones", "rolls": 2}
  ]
}
`

const cowClient = `{
  "minecraft:client_entity": {
    "description": {"identifier": "x:cow"}
  }
}
`

func mustRegistry(t *testing.T) *packdb.Registry {
	t.Helper()

	reg, err := packdb.LoadSchema([]byte(testSchema))
	require.NoError(t, err)

	return reg
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}

func fileExists(t *testing.T, root, rel string) bool {
	t.Helper()

	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return false
	}

	require.NoError(t, err)

	return true
}

type packOption func(*packdb.Config)

func withFS(fsys fs.FS) packOption {
	return func(c *packdb.Config) { c.FS = fsys }
}

func withOutput(dir string) packOption {
	return func(c *packdb.Config) { c.Output = dir }
}

func openPack(t *testing.T, reg *packdb.Registry, side, root string, opts ...packOption) *packdb.Pack {
	t.Helper()

	cfg := packdb.Config{Root: root, Schema: reg, Pack: side}
	for _, opt := range opts {
		opt(&cfg)
	}

	pack, err := packdb.OpenPack(cfg)
	require.NoError(t, err)

	return pack
}

// behaviorPack returns a behavior pack holding the cow and pig entities and
// the cow loot table.
func behaviorPack(t *testing.T, opts ...packOption) (*packdb.Pack, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "bp")
	writeFile(t, root, "entities/cow.json", cowEntity)
	writeFile(t, root, "entities/pig.json", pigEntity)
	writeFile(t, root, "loot_tables/cow.json", cowLoot)

	return openPack(t, mustRegistry(t), "behavior", root, opts...), root
}

func mustDoc(t *testing.T, pack *packdb.Pack, kind, id string) *packdb.FileDocument {
	t.Helper()

	doc, err := pack.Get(kind, id)
	require.NoError(t, err)

	return doc
}

func mustChild(t *testing.T, n packdb.Node, coll, id string) *packdb.Region {
	t.Helper()

	r, err := n.Child(coll, id)
	require.NoError(t, err)

	return r
}

func identities(t *testing.T, regions []*packdb.Region) []string {
	t.Helper()

	out := make([]string, 0, len(regions))

	for _, r := range regions {
		id, err := r.Identity()
		require.NoError(t, err)

		out = append(out, id)
	}

	return out
}
