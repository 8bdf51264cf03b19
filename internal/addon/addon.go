// Package addon binds packdb to Bedrock add-ons: an embedded schema for
// behavior and resource packs, and constructors opening them as a project.
package addon

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/calvinalkan/packdb/internal/fs"
	"github.com/calvinalkan/packdb/pkg/packdb"
)

// Pack sides declared by the embedded schema.
const (
	BehaviorPack = "behavior"
	ResourcePack = "resource"
)

//go:embed schema.jsonc
var schemaText []byte

var compiled = sync.OnceValues(func() (*packdb.Registry, error) {
	return packdb.LoadSchema(schemaText)
})

// Schema returns the compiled embedded schema. The registry is read-only
// and shared.
func Schema() (*packdb.Registry, error) {
	return compiled()
}

// SchemaSource returns the embedded schema text.
func SchemaSource() []byte {
	return bytes.Clone(schemaText)
}

// Options configures [OpenPack] and [OpenProject].
type Options struct {
	// Output redirects saves. For a project each pack writes to
	// Output/<base name of its root>; for a single pack Output is used as is.
	Output string

	// Schema overrides the embedded schema.
	Schema *packdb.Registry

	FS     fs.FS
	Logger *slog.Logger
}

func (o Options) registry() (*packdb.Registry, error) {
	if o.Schema != nil {
		return o.Schema, nil
	}

	return Schema()
}

// OpenPack opens the pack at root holding side.
func OpenPack(side, root string, opts Options) (*packdb.Pack, error) {
	reg, err := opts.registry()
	if err != nil {
		return nil, err
	}

	return packdb.OpenPack(packdb.Config{
		Root:   root,
		Output: opts.Output,
		Schema: reg,
		Pack:   side,
		FS:     opts.FS,
		Logger: opts.Logger,
	})
}

// OpenProject opens the behavior pack at bp and the resource pack at rp
// and pairs them.
func OpenProject(bp, rp string, opts Options) (*packdb.Project, error) {
	if bp == "" || rp == "" {
		return nil, errors.New("both a behavior pack and a resource pack are required")
	}

	output := opts.Output
	opts.Output = ""

	behavior, err := OpenPack(BehaviorPack, bp, opts)
	if err != nil {
		return nil, fmt.Errorf("behavior pack: %w", err)
	}

	resource, err := OpenPack(ResourcePack, rp, opts)
	if err != nil {
		return nil, fmt.Errorf("resource pack: %w", err)
	}

	project, err := packdb.NewProject(behavior, resource)
	if err != nil {
		return nil, err
	}

	if output != "" {
		project.SetOutputDir(output)
	}

	return project, nil
}
