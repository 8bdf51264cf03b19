package packdb

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calvinalkan/packdb/internal/fs"
)

// Config configures [OpenPack].
type Config struct {
	// Root is the pack directory documents are loaded from. Required.
	Root string

	// Output is the directory saves write to. Defaults to Root.
	Output string

	// Schema is the compiled schema. Required.
	Schema *Registry

	// Pack is the side ("behavior", "resource") whose file kinds the pack
	// holds. Required.
	Pack string

	// FS defaults to the real filesystem.
	FS fs.FS

	// Scanner defaults to a [WalkScanner] over FS.
	Scanner Scanner

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Pack is an indexed set of file documents of one pack side.
//
// Documents are discovered lazily per kind, the first time the kind is
// listed or looked up. A Pack is not safe for concurrent use.
type Pack struct {
	root    string
	output  string
	side    string
	schema  *Registry
	fs      fs.FS
	scanner Scanner
	log     *slog.Logger

	byPath map[string]*FileDocument
	byID   map[string]map[string]*FileDocument

	// discovered memoizes discovery per kind, with its failures.
	discovered map[string]error
}

// OpenPack validates cfg and returns an empty pack. No file is read until
// a kind is first used.
func OpenPack(cfg Config) (*Pack, error) {
	if cfg.Root == "" {
		return nil, errors.New("Config.Root is required")
	}

	if cfg.Schema == nil {
		return nil, errors.New("Config.Schema is required")
	}

	if cfg.Pack == "" {
		return nil, errors.New("Config.Pack is required")
	}

	if cfg.FS == nil {
		cfg.FS = fs.NewReal()
	}

	if cfg.Scanner == nil {
		cfg.Scanner = WalkScanner{FS: cfg.FS}
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	root := filepath.Clean(cfg.Root)

	output := root
	if cfg.Output != "" {
		output = filepath.Clean(cfg.Output)
	}

	return &Pack{
		root:       root,
		output:     output,
		side:       cfg.Pack,
		schema:     cfg.Schema,
		fs:         cfg.FS,
		scanner:    cfg.Scanner,
		log:        cfg.Logger.With("pack", cfg.Pack),
		byPath:     make(map[string]*FileDocument),
		byID:       make(map[string]map[string]*FileDocument),
		discovered: make(map[string]error),
	}, nil
}

// Root returns the pack directory.
func (p *Pack) Root() string { return p.root }

// Output returns the directory saves write to.
func (p *Pack) Output() string { return p.output }

// Side returns the pack side.
func (p *Pack) Side() string { return p.side }

// Schema returns the compiled schema.
func (p *Pack) Schema() *Registry { return p.schema }

// SetOutputDir redirects future saves to dir.
func (p *Pack) SetOutputDir(dir string) {
	p.output = filepath.Clean(dir)
}

// Kinds returns the file kinds the pack holds.
func (p *Pack) Kinds() []*Kind {
	return p.schema.FileKinds(p.side)
}

func (p *Pack) fileKind(name string) (*Kind, error) {
	k, ok := p.schema.Kind(name)
	if !ok || !k.isFile || k.pack != p.side {
		return nil, fmt.Errorf("%w: pack %q has no file kind %q", ErrNotFound, p.side, name)
	}

	return k, nil
}

func (p *Pack) outputPath(rel string) string {
	return filepath.Join(p.output, filepath.FromSlash(rel))
}

// Register adds a floating document to the pack. A path already taken
// fails with [ErrExists].
func (p *Pack) Register(doc *FileDocument) error {
	err := p.register(doc)

	return withContext(err, kindName(doc.kind), "", doc.path)
}

func (p *Pack) register(doc *FileDocument) error {
	if doc.state == Removed {
		return ErrRemoved
	}

	if doc.pack != nil && doc.pack != p {
		return fmt.Errorf("%w: document belongs to another pack", ErrExists)
	}

	if _, err := p.fileKind(doc.kind.name); err != nil {
		return err
	}

	if other, ok := p.byPath[doc.path]; ok {
		if other == doc {
			return nil
		}

		return fmt.Errorf("%w: path %s", ErrExists, doc.path)
	}

	doc.pack = p
	p.byPath[doc.path] = doc
	p.reindex(doc)

	return nil
}

// reindex refreshes doc's entry in the identity index. A document whose
// identity is missing or taken by another document is only reachable by
// path and by listing.
func (p *Pack) reindex(doc *FileDocument) {
	ids := p.byID[doc.kind.name]
	if ids == nil {
		ids = make(map[string]*FileDocument)
		p.byID[doc.kind.name] = ids
	}

	if doc.indexed {
		if ids[doc.indexedID] == doc {
			delete(ids, doc.indexedID)
		}

		doc.indexed, doc.indexedID = false, ""
	}

	if doc.state == Removed {
		return
	}

	id, err := doc.identity()
	if err != nil {
		return
	}

	id = doc.kind.normalizeIdentity(id)

	if other, ok := ids[id]; ok && other != doc {
		p.log.Warn("duplicate identity", "kind", doc.kind.name, "id", id,
			"path", doc.path, "other", other.path)

		return
	}

	ids[id] = doc
	doc.indexed, doc.indexedID = true, id
}

func (p *Pack) move(doc *FileDocument, rel string) error {
	if err := p.claim(rel, doc); err != nil {
		return err
	}

	delete(p.byPath, doc.path)
	p.byPath[rel] = doc

	return nil
}

// discoverCovering discovers every kind whose folder holds rel.
func (p *Pack) discoverCovering(rel string) {
	for _, k := range p.Kinds() {
		if rel == k.rule.Folder || strings.HasPrefix(rel, k.rule.Folder+"/") {
			_ = p.discover(k)
		}
	}
}

// claim fails with [ErrExists] when rel belongs to a document other than
// self, or a file is on disk there under the root or the output dir. The
// file self was last saved to does not count.
func (p *Pack) claim(rel string, self *FileDocument) error {
	p.discoverCovering(rel)

	if other, ok := p.byPath[rel]; ok {
		if other == self {
			return nil
		}

		return fmt.Errorf("%w: path %s", ErrExists, rel)
	}

	if self != nil && self.persisted == rel {
		return nil
	}

	dirs := []string{p.root}
	if p.output != p.root {
		dirs = append(dirs, p.output)
	}

	for _, dir := range dirs {
		exists, err := p.fs.Exists(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}

		if exists {
			return fmt.Errorf("%w: file on disk at %s", ErrExists, rel)
		}
	}

	return nil
}

// remove deletes doc's output files and unregisters it.
func (p *Pack) remove(doc *FileDocument) error {
	targets := []string{doc.path}
	if doc.persisted != "" && doc.persisted != doc.path {
		targets = append(targets, doc.persisted)
	}

	for _, rel := range targets {
		if err := removeIfExists(p, p.outputPath(rel)); err != nil {
			return fmt.Errorf("removing: %w", err)
		}
	}

	if p.byPath[doc.path] == doc {
		delete(p.byPath, doc.path)
	}

	doc.state = Removed
	doc.dirty = false
	doc.detach(doc.address(), nil)
	p.reindex(doc)

	p.log.Debug("removed document", "kind", doc.kind.name, "path", doc.path)

	return nil
}

// discover loads the files of kind once. Later calls return the memoized
// failures.
func (p *Pack) discover(k *Kind) error {
	if err, done := p.discovered[k.name]; done {
		return err
	}

	batch := &BatchError{Op: "discover"}

	paths, err := p.scanner.Scan(p.root, k.rule)
	if err != nil {
		batch.add(&Error{Kind: k.name, Path: k.rule.Folder, Err: fmt.Errorf("scanning: %w", err)})
	}

	for _, rel := range paths {
		if _, ok := p.byPath[rel]; ok {
			continue
		}

		doc, err := p.load(k, rel)
		if err != nil {
			p.log.Warn("skipping document", "kind", k.name, "path", rel, "error", err)
			batch.add(err)

			continue
		}

		p.byPath[rel] = doc
		doc.pack = p
		p.reindex(doc)
	}

	p.discovered[k.name] = batch.err()

	return p.discovered[k.name]
}

func (p *Pack) load(k *Kind, rel string) (*FileDocument, error) {
	data, err := p.fs.ReadFile(filepath.Join(p.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, &Error{Kind: k.name, Path: rel, Err: err}
	}

	return loadFileDocument(k, rel, data)
}

// Documents returns the documents of kind sorted by path, discovering the
// kind first if needed. Files that fail to load are reported in a
// [*BatchError] next to the documents that loaded.
func (p *Pack) Documents(kind string) ([]*FileDocument, error) {
	k, err := p.fileKind(kind)
	if err != nil {
		return nil, err
	}

	discoverErr := p.discover(k)

	var out []*FileDocument

	for _, doc := range p.byPath {
		if doc.kind == k && doc.state != Removed {
			out = append(out, doc)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })

	return out, discoverErr
}

// Get returns the document of kind with identity id. Identities of
// path-identified kinds are compared as cleaned paths.
func (p *Pack) Get(kind, id string) (*FileDocument, error) {
	k, err := p.fileKind(kind)
	if err != nil {
		return nil, err
	}

	_ = p.discover(k)

	id = k.normalizeIdentity(id)

	if doc, ok := p.byID[k.name][id]; ok {
		return doc, nil
	}

	// Duplicates are left out of the index.
	for _, doc := range p.byPath {
		if doc.kind != k || doc.state == Removed {
			continue
		}

		if got, err := doc.identity(); err == nil && k.normalizeIdentity(got) == id {
			return doc, nil
		}
	}

	return nil, &Error{Kind: k.name, ID: id, Err: ErrNotFound}
}

// ByPath returns the document at the pack-relative path rel.
func (p *Pack) ByPath(rel string) (*FileDocument, error) {
	clean, err := normalizePath(rel)
	if err != nil {
		return nil, withContext(err, "", "", rel)
	}

	p.discoverCovering(clean)

	doc, ok := p.byPath[clean]
	if !ok || doc.state == Removed {
		return nil, &Error{Path: clean, Err: ErrNotFound}
	}

	return doc, nil
}

// Create adds a new document of kind at rel holding content. The document
// is dirty and written by the next save. A path that is taken, in the pack
// or on disk, fails with [ErrExists].
func (p *Pack) Create(kind, rel string, content any) (*FileDocument, error) {
	k, err := p.fileKind(kind)
	if err != nil {
		return nil, err
	}

	_ = p.discover(k)

	doc, err := NewFileDocument(k, rel, content)
	if err != nil {
		return nil, err
	}

	if err := p.claim(doc.path, nil); err != nil {
		return nil, withContext(err, k.name, "", doc.path)
	}

	if err := p.Register(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// All returns every registered document sorted by path.
func (p *Pack) All() []*FileDocument {
	out := make([]*FileDocument, 0, len(p.byPath))
	for _, doc := range p.byPath {
		out = append(out, doc)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })

	return out
}

// Save saves every registered document. Failures are collected in a
// [*BatchError]; one failing document never stops the others.
func (p *Pack) Save(force bool) error {
	batch := &BatchError{Op: "save"}

	for _, doc := range p.All() {
		err := doc.Save(force)
		if err != nil {
			p.log.Warn("save failed", "kind", doc.kind.name, "path", doc.path, "error", err)
			batch.add(err)
		}
	}

	return batch.err()
}

// Regions returns the regions of collection across every document of kind,
// in path order then document order.
func (p *Pack) Regions(kind, collection string) ([]*Region, error) {
	docs, discoverErr := p.Documents(kind)

	var discoverBatch *BatchError
	if discoverErr != nil && !errors.As(discoverErr, &discoverBatch) {
		return nil, discoverErr
	}

	batch := &BatchError{Op: "regions"}

	var out []*Region

	for _, doc := range docs {
		regions, err := doc.Children(collection)
		if err != nil {
			batch.add(err)

			continue
		}

		out = append(out, regions...)
	}

	return out, joinBatches("regions", discoverErr, batch.err())
}

// Call invokes the pack-level accessor named name.
func (p *Pack) Call(name string, args ...any) (any, error) {
	a, ok := p.schema.PackAccessor(p.side, name)
	if !ok {
		return nil, fmt.Errorf("%w: pack %q has no accessor %q", ErrNotFound, p.side, name)
	}

	return a.Invoke(p, args...)
}
