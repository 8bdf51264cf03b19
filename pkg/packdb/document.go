package packdb

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/packdb/pkg/jsonpath"
	"github.com/calvinalkan/packdb/pkg/jsonv"
)

// Node is the value access and collection surface shared by [*Document],
// [*FileDocument] and [*Region]. Paths are [jsonpath] expressions relative
// to the node's own root.
type Node interface {
	Kind() *Kind
	Dirty() bool
	State() State

	Value() (any, error)
	ValueAt(path string) (any, error)
	ValueOr(path string, def any) (any, error)
	SetValue(value any) error
	SetValueAt(path string, value any) error
	SetDefaultAt(path string, value any) (bool, error)
	DeleteValueAt(path string) error
	PopValueAt(path string) (any, error)
	AppendValueAt(path string, value any) error

	Children(collection string) ([]*Region, error)
	Child(collection, identity string) (*Region, error)
	Create(collection, identity string, content any) (*Region, error)

	Property(name string) (any, error)
	SetProperty(name string, value any) error
}

// Document owns a parsed value tree and the regions materialized over it.
//
// Reads return deep copies; the tree only changes through the mutators,
// which mark the document dirty. A Document is not safe for concurrent use.
type Document struct {
	resource

	kind    *Kind
	value   any
	regions regionCache
	pending []*Region

	// file is set when the document is the body of a FileDocument.
	file *FileDocument
}

// NewDocument returns a document of kind holding content. kind may be nil
// for a document without schema. A nil content is an empty mapping; any
// other content must be a mapping or a sequence.
func NewDocument(kind *Kind, content any) (*Document, error) {
	d := &Document{kind: kind, regions: regionCache{}}

	value, err := rootValue(content)
	if err != nil {
		return nil, withContext(err, kindName(kind), "", "")
	}

	d.value = value

	return d, nil
}

// ParseDocument parses data (JSON with comments allowed) into a document of
// kind. Malformed input fails with [ErrInvalidFormat] and no document.
func ParseDocument(kind *Kind, data []byte) (*Document, error) {
	value, err := jsonv.Parse(data)
	if err != nil {
		return nil, withContext(err, kindName(kind), "", "")
	}

	return NewDocument(kind, value)
}

func rootValue(content any) (any, error) {
	if content == nil {
		return jsonv.NewObject(), nil
	}

	value, err := jsonv.From(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrType, err)
	}

	if !jsonv.IsContainer(value) {
		return nil, fmt.Errorf("%w: document root must be a mapping or a sequence, got %s",
			ErrType, jsonv.TypeName(value))
	}

	return value, nil
}

// Kind returns the schema kind, or nil.
func (d *Document) Kind() *Kind {
	return d.kind
}

// Value returns a copy of the whole value tree.
func (d *Document) Value() (any, error) {
	return d.ValueAt("")
}

// ValueAt returns a copy of the value at path.
func (d *Document) ValueAt(path string) (any, error) {
	if err := d.live(); err != nil {
		return nil, d.wrap(err)
	}

	v, err := d.get(jsonpath.Root(), path)

	return v, d.wrap(err)
}

// ValueOr returns a copy of the value at path, or def if it is absent.
func (d *Document) ValueOr(path string, def any) (any, error) {
	v, err := d.ValueAt(path)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}

	return v, err
}

// SetValue replaces the whole value tree. value must be a mapping or a
// sequence. Every cached region is dropped.
func (d *Document) SetValue(value any) error {
	if err := d.live(); err != nil {
		return d.wrap(err)
	}

	root, err := rootValue(value)
	if err != nil {
		return d.wrap(err)
	}

	d.value = root
	d.detach(jsonpath.Root(), nil)
	d.markDirty()

	return nil
}

// SetValueAt stores value at path, creating missing containers along
// concrete segments. Regions cached at or below path are dropped.
func (d *Document) SetValueAt(path string, value any) error {
	if err := d.live(); err != nil {
		return d.wrap(err)
	}

	rel, err := parsePath(path)
	if err != nil {
		return d.wrap(err)
	}

	if rel.IsRoot() {
		return d.SetValue(value)
	}

	err = d.set(jsonpath.Root(), rel, value, nil)
	if err != nil {
		return d.wrap(err)
	}

	d.markDirty()

	return nil
}

// SetDefaultAt stores value at path only if path is absent. Reports whether
// it wrote.
func (d *Document) SetDefaultAt(path string, value any) (bool, error) {
	if err := d.live(); err != nil {
		return false, d.wrap(err)
	}

	rel, err := parsePath(path)
	if err != nil {
		return false, d.wrap(err)
	}

	if d.has(jsonpath.Root(), rel) {
		return false, nil
	}

	err = d.SetValueAt(path, value)

	return err == nil, err
}

// DeleteValueAt removes the value at path. Absent paths are a no-op.
func (d *Document) DeleteValueAt(path string) error {
	_, err := d.PopValueAt(path)
	if errors.Is(err, ErrNotFound) {
		return nil
	}

	return err
}

// PopValueAt removes the value at path and returns it.
// Returns [ErrNotFound] if path is absent.
func (d *Document) PopValueAt(path string) (any, error) {
	if err := d.live(); err != nil {
		return nil, d.wrap(err)
	}

	v, err := d.pop(jsonpath.Root(), path)
	if err != nil {
		return nil, d.wrap(err)
	}

	d.markDirty()

	return v, nil
}

// AppendValueAt appends value to the sequence at path. An absent concrete
// path is created as a one-element sequence.
func (d *Document) AppendValueAt(path string, value any) error {
	if err := d.live(); err != nil {
		return d.wrap(err)
	}

	err := d.appendAt(jsonpath.Root(), path, value)
	if err != nil {
		return d.wrap(err)
	}

	d.markDirty()

	return nil
}

// Bytes serializes the document in canonical form.
func (d *Document) Bytes() ([]byte, error) {
	data, err := jsonv.Marshal(d.value)

	return data, d.wrap(err)
}

// Children returns the regions of collection in document order.
func (d *Document) Children(collection string) ([]*Region, error) {
	regions, err := children(d, collection)

	return regions, d.wrap(err)
}

// Child returns the region of collection whose identity is identity.
func (d *Document) Child(collection, identity string) (*Region, error) {
	r, err := child(d, collection, identity)

	return r, withContext(err, kindName(d.kind), identity, d.filePath())
}

// Create adds a region to collection.
func (d *Document) Create(collection, identity string, content any) (*Region, error) {
	r, err := create(d, collection, identity, content)

	return r, withContext(err, kindName(d.kind), identity, d.filePath())
}

// Property returns the named schema property.
func (d *Document) Property(name string) (any, error) {
	v, err := getProperty(d, name)

	return v, d.wrap(err)
}

// SetProperty writes the named schema property.
func (d *Document) SetProperty(name string, value any) error {
	return d.wrap(setProperty(d, name, value))
}

// --- holder ---

func (d *Document) owner() *Document {
	return d
}

func (d *Document) address() jsonpath.Path {
	return jsonpath.Root()
}

func (d *Document) regionCache() regionCache {
	return d.regions
}

// markDirty marks the document dirty and refreshes its pack index entry.
func (d *Document) markDirty() {
	d.dirty = true

	if d.file != nil {
		d.file.reindex()
	}
}

func (d *Document) live() error {
	if d.state == Removed {
		return ErrRemoved
	}

	return nil
}

func (d *Document) kindOf() *Kind {
	return d.kind
}

func (d *Document) filePath() string {
	if d.file == nil {
		return ""
	}

	return d.file.path
}

func (d *Document) wrap(err error) error {
	if err == nil {
		return nil
	}

	id := ""

	if d.file != nil {
		if v, idErr := d.file.identity(); idErr == nil {
			id = v
		}
	}

	return withContext(err, kindName(d.kind), id, d.filePath())
}

// --- path operations relative to base ---

func parsePath(path string) (jsonpath.Path, error) {
	return jsonpath.Parse(path)
}

func (d *Document) get(base jsonpath.Path, path string) (any, error) {
	rel, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	v, err := jsonpath.Get(d.value, base.Join(rel))
	if err != nil {
		return nil, err
	}

	return jsonv.Clone(v), nil
}

func (d *Document) has(base, rel jsonpath.Path) bool {
	return jsonpath.Exists(d.value, base.Join(rel))
}

// set writes value at base/rel. rel must not be the root. Regions at or
// below the written location are dropped, except self.
func (d *Document) set(base, rel jsonpath.Path, value any, self *Region) error {
	val, err := jsonv.From(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrType, err)
	}

	loc, err := jsonpath.Target(d.value, base.Join(rel))
	if err != nil {
		return err
	}

	root, err := jsonpath.Set(d.value, loc, val)
	if err != nil {
		return err
	}

	d.value = root
	d.detach(loc, self)

	return nil
}

// pop removes the value at base/path. Removing base itself is refused.
func (d *Document) pop(base jsonpath.Path, path string) (any, error) {
	rel, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	if rel.IsRoot() {
		return nil, fmt.Errorf("%w: cannot remove the root value", ErrPath)
	}

	m, err := jsonpath.Locate(d.value, base.Join(rel))
	if err != nil {
		return nil, err
	}

	return d.remove(m.Path)
}

// remove deletes the value at the concrete location loc, drops the regions
// under it and re-addresses later siblings in a sequence.
func (d *Document) remove(loc jsonpath.Path) (any, error) {
	v, err := jsonpath.Pop(d.value, loc)
	if err != nil {
		return nil, err
	}

	d.detach(loc, nil)

	parent, last, _ := loc.Split()
	if idx, ok := last.Index(); ok && last.Bracketed {
		d.shift(parent, idx)
	}

	return v, nil
}

func (d *Document) appendAt(base jsonpath.Path, path string, value any) error {
	rel, err := parsePath(path)
	if err != nil {
		return err
	}

	val, err := jsonv.From(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrType, err)
	}

	root, err := jsonpath.Append(d.value, base.Join(rel), val)
	if err != nil {
		return err
	}

	d.value = root

	return nil
}

func kindName(k *Kind) string {
	if k == nil {
		return ""
	}

	return k.name
}
