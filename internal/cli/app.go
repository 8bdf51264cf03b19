package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/packdb/internal/addon"
	"github.com/calvinalkan/packdb/internal/fs"
	"github.com/calvinalkan/packdb/pkg/jsonv"
	"github.com/calvinalkan/packdb/pkg/packdb"
)

// app opens the configured packs on first use and keeps them open for the
// rest of the process, so the shell sees its own edits.
type app struct {
	cfg Config
	fs  fs.FS
	log *slog.Logger

	schema  *packdb.Registry
	packs   map[string]*packdb.Pack
	project *packdb.Project
	opened  bool
}

func newApp(cfg Config, fsys fs.FS, log *slog.Logger) *app {
	return &app{cfg: cfg, fs: fsys, log: log}
}

func (a *app) registry() (*packdb.Registry, error) {
	if a.schema != nil {
		return a.schema, nil
	}

	if a.cfg.Schema == "" {
		reg, err := addon.Schema()
		if err != nil {
			return nil, err
		}

		a.schema = reg

		return reg, nil
	}

	data, err := a.fs.ReadFile(a.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}

	reg, err := packdb.LoadSchema(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.cfg.Schema, err)
	}

	a.schema = reg

	return reg, nil
}

func (a *app) open() error {
	if a.opened {
		return nil
	}

	reg, err := a.registry()
	if err != nil {
		return err
	}

	opts := addon.Options{Schema: reg, FS: a.fs, Logger: a.log}
	a.packs = make(map[string]*packdb.Pack)

	bp, rp := a.cfg.BehaviorPack, a.cfg.ResourcePack

	switch {
	case bp != "" && rp != "":
		opts.Output = a.cfg.Output

		project, err := addon.OpenProject(bp, rp, opts)
		if err != nil {
			return err
		}

		a.project = project
		a.packs[addon.BehaviorPack] = project.Pack(addon.BehaviorPack)
		a.packs[addon.ResourcePack] = project.Pack(addon.ResourcePack)
	case bp != "":
		err = a.openPack(addon.BehaviorPack, bp, opts)
	case rp != "":
		err = a.openPack(addon.ResourcePack, rp, opts)
	default:
		return fmt.Errorf("%w: set --bp or --rp, or behavior_pack in %s", ErrNoPack, ConfigFileName)
	}

	if err != nil {
		return err
	}

	a.opened = true

	return nil
}

// openPack opens a single pack, writing to the same Output/<base> layout a
// project uses.
func (a *app) openPack(side, root string, opts addon.Options) error {
	if a.cfg.Output != "" {
		opts.Output = filepath.Join(a.cfg.Output, filepath.Base(root))
	}

	p, err := addon.OpenPack(side, root, opts)
	if err != nil {
		return err
	}

	a.packs[side] = p

	return nil
}

// sides returns the open pack sides in schema order.
func (a *app) sides() []string {
	var out []string

	for _, side := range a.schema.Packs() {
		if a.packs[side] != nil {
			out = append(out, side)
		}
	}

	return out
}

func (a *app) pack(side string) (*packdb.Pack, error) {
	if err := a.open(); err != nil {
		return nil, err
	}

	p := a.packs[side]
	if p == nil {
		return nil, fmt.Errorf("%w: %s pack", ErrNoPack, side)
	}

	return p, nil
}

// fileKind resolves a file kind and the pack holding it.
func (a *app) fileKind(name string) (*packdb.Kind, *packdb.Pack, error) {
	if err := a.open(); err != nil {
		return nil, nil, err
	}

	k, ok := a.schema.Kind(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown kind %q", packdb.ErrNotFound, name)
	}

	if !k.IsFile() {
		return nil, nil, fmt.Errorf("%w: %s is a region kind", packdb.ErrType, name)
	}

	p, err := a.pack(k.Pack())
	if err != nil {
		return nil, nil, err
	}

	return k, p, nil
}

func (a *app) doc(kind, id string) (*packdb.FileDocument, error) {
	_, p, err := a.fileKind(kind)
	if err != nil {
		return nil, err
	}

	return p.Get(kind, id)
}

// node resolves a document, or a region below it when sel names one as
// "collection/identity[/collection/identity...]".
func (a *app) node(kind, id, sel string) (packdb.Node, error) {
	doc, err := a.doc(kind, id)
	if err != nil {
		return nil, err
	}

	if sel == "" {
		return doc, nil
	}

	parts := strings.Split(sel, "/")
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("%w: region selector %q needs collection/identity pairs", packdb.ErrPath, sel)
	}

	var n packdb.Node = doc

	for i := 0; i < len(parts); i += 2 {
		r, err := n.Child(parts[i], parts[i+1])
		if err != nil {
			return nil, err
		}

		n = r
	}

	return n, nil
}

// mutate runs fn under the lock of the pack holding kind and saves the
// pack afterwards. Documents are looked up inside fn, after the lock is
// held.
func (a *app) mutate(kind string, fn func(p *packdb.Pack) error) error {
	_, p, err := a.fileKind(kind)
	if err != nil {
		return err
	}

	lock, err := a.fs.Lock(p.Root())
	if err != nil {
		return fmt.Errorf("locking %s: %w", p.Root(), err)
	}

	defer func() { _ = lock.Close() }()

	if err := fn(p); err != nil {
		return err
	}

	return p.Save(false)
}

// reportBatch turns the per-document failures of a bulk read into
// warnings and returns any other error.
func reportBatch(o *IO, err error) error {
	if err == nil {
		return nil
	}

	var batch *packdb.BatchError
	if !errors.As(err, &batch) {
		return err
	}

	for _, e := range batch.Errs {
		o.Warn(e.Error(), "fix or remove the file")
	}

	return nil
}

// parseValue reads a command line argument as JSON, falling back to a
// plain string when it is not valid JSON.
func parseValue(s string) any {
	v, err := jsonv.Parse([]byte(s))
	if err != nil {
		return s
	}

	return v
}

func printJSON(o *IO, v any) error {
	conv, err := jsonv.From(v)
	if err != nil {
		return err
	}

	data, err := jsonv.Marshal(conv)
	if err != nil {
		return err
	}

	o.Printf("%s", data)

	return nil
}

func printRegions(o *IO, regions []*packdb.Region) error {
	for _, r := range regions {
		id, err := r.Identity()
		if err != nil {
			return err
		}

		o.Printf("%s\t%s\n", id, r.Address())
	}

	return nil
}

func printDocuments(o *IO, docs []*packdb.FileDocument) error {
	for _, d := range docs {
		id, err := d.Identity()
		if err != nil {
			return err
		}

		o.Printf("%s\t%s\n", id, d.Path())
	}

	return nil
}

// printResult renders whatever an accessor returned.
func printResult(o *IO, v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case []*packdb.Region:
		return printRegions(o, val)
	case *packdb.Region:
		return printRegions(o, []*packdb.Region{val})
	case []*packdb.FileDocument:
		return printDocuments(o, val)
	case *packdb.FileDocument:
		return printDocuments(o, []*packdb.FileDocument{val})
	case packdb.FormatVersion:
		o.Println(val.String())

		return nil
	default:
		return printJSON(o, val)
	}
}
