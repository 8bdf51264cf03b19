package packdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/calvinalkan/packdb/pkg/jsonpath"
	"github.com/calvinalkan/packdb/pkg/jsonv"
)

// Region is a view onto a sub-tree of a document: one member of a schema
// collection. Regions are materialized by [Node.Children], [Node.Child] and
// [Node.Create] and cached per collection and address, so enumerating twice
// without structural edits returns the same *Region values.
//
// A Region whose slot was removed or overwritten through its document is
// Removed.
type Region struct {
	resource

	kind   *Kind
	coll   *Collection
	doc    *Document
	parent holder

	// rel is concrete and relative to the parent's root.
	rel     jsonpath.Path
	regions regionCache
}

func newRegion(parent holder, coll *Collection, rel jsonpath.Path) *Region {
	return &Region{
		kind:    coll.kind,
		coll:    coll,
		doc:     parent.owner(),
		parent:  parent,
		rel:     rel,
		regions: regionCache{},
	}
}

// Kind returns the region's schema kind.
func (r *Region) Kind() *Kind {
	return r.kind
}

// Collection returns the collection the region belongs to.
func (r *Region) Collection() *Collection {
	return r.coll
}

// Document returns the owning document.
func (r *Region) Document() *Document {
	return r.doc
}

// Parent returns the document or region the region hangs off.
func (r *Region) Parent() Node {
	switch p := r.parent.(type) {
	case *Region:
		return p
	case *Document:
		if p.file != nil {
			return p.file
		}

		return p
	default:
		return nil
	}
}

// Address returns the location of the region's root in its document.
func (r *Region) Address() string {
	return r.address().String()
}

// Identity returns the region's identity: the identity field of its
// collection, or its slot key when the collection has none.
func (r *Region) Identity() (string, error) {
	if err := r.live(); err != nil {
		return "", r.wrap(err)
	}

	id, err := r.identity()

	return id, r.wrap(err)
}

func (r *Region) identity() (string, error) {
	if !r.coll.hasIdentity {
		last, _ := r.rel.Last()

		return last.Key, nil
	}

	v, err := jsonpath.Get(r.doc.value, r.address().Join(r.coll.identity))
	if err != nil {
		return "", err
	}

	return identityString(v)
}

func identityString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	default:
		return "", fmt.Errorf("%w: identity must be a string, got %s", ErrType, jsonv.TypeName(v))
	}
}

// SetIdentity changes the region's identity.
//
// The identity field is written when the collection has one. When the slot
// is keyed by identity the slot key is renamed in place, keeping member
// order, and the region's address follows. All checks run before the first
// write. Renaming onto an identity a sibling holds fails with [ErrExists].
func (r *Region) SetIdentity(id string) error {
	if err := r.live(); err != nil {
		return r.wrap(err)
	}

	err := r.setIdentity(id)
	if err != nil {
		return withContext(err, kindName(r.kind), id, r.doc.filePath())
	}

	r.markDirty()

	return nil
}

func (r *Region) setIdentity(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty identity", ErrPath)
	}

	if cur, err := r.identity(); err == nil && cur == id {
		return nil
	}

	if other, err := child(r.parent, r.coll.name, id); err == nil && other != r {
		return fmt.Errorf("%w: %s %q", ErrExists, r.coll.name, id)
	}

	loc := r.address()

	var (
		slots   *jsonv.Object
		oldSlot string
	)

	if r.coll.keyed() {
		parentLoc, last, _ := loc.Split()

		container, err := jsonpath.Get(r.doc.value, parentLoc)
		if err != nil {
			return err
		}

		obj, ok := container.(*jsonv.Object)
		if !ok {
			return fmt.Errorf("%w: slot %s is a sequence index", ErrType, loc)
		}

		if last.Key != id && obj.Has(id) {
			return fmt.Errorf("%w: %s", ErrExists, parentLoc.Key(id))
		}

		slots, oldSlot = obj, last.Key
	}

	if r.coll.hasIdentity {
		value, err := jsonpath.Get(r.doc.value, loc)
		if err != nil {
			return err
		}

		if _, ok := value.(*jsonv.Object); !ok {
			return fmt.Errorf("%w: identity field on %s", ErrType, jsonv.TypeName(value))
		}

		err = r.doc.set(loc, r.coll.identity, id, r)
		if err != nil {
			return err
		}
	}

	if slots != nil && oldSlot != id {
		err := slots.Rename(oldSlot, id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExists, err)
		}

		r.relocate(r.rel.WithLast(jsonpath.Segment{Kind: jsonpath.Literal, Key: id}))
	}

	return nil
}

// Value returns a copy of the region's sub-tree.
func (r *Region) Value() (any, error) {
	return r.ValueAt("")
}

// ValueAt returns a copy of the value at path inside the region.
func (r *Region) ValueAt(path string) (any, error) {
	if err := r.live(); err != nil {
		return nil, r.wrap(err)
	}

	v, err := r.doc.get(r.address(), path)

	return v, r.wrap(err)
}

// ValueOr returns a copy of the value at path, or def if it is absent.
func (r *Region) ValueOr(path string, def any) (any, error) {
	v, err := r.ValueAt(path)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}

	return v, err
}

// SetValue replaces the region's sub-tree. value must be a mapping or a
// sequence. The region's cached children are dropped.
func (r *Region) SetValue(value any) error {
	if err := r.live(); err != nil {
		return r.wrap(err)
	}

	val, err := rootValue(value)
	if err != nil {
		return r.wrap(err)
	}

	loc := r.address()

	root, err := jsonpath.Set(r.doc.value, loc, val)
	if err != nil {
		return r.wrap(err)
	}

	r.doc.value = root
	r.doc.detach(loc, r)
	r.markDirty()

	return nil
}

// SetValueAt stores value at path inside the region.
func (r *Region) SetValueAt(path string, value any) error {
	if err := r.live(); err != nil {
		return r.wrap(err)
	}

	rel, err := parsePath(path)
	if err != nil {
		return r.wrap(err)
	}

	if rel.IsRoot() {
		return r.SetValue(value)
	}

	err = r.doc.set(r.address(), rel, value, r)
	if err != nil {
		return r.wrap(err)
	}

	r.markDirty()

	return nil
}

// SetDefaultAt stores value at path only if path is absent. Reports whether
// it wrote.
func (r *Region) SetDefaultAt(path string, value any) (bool, error) {
	if err := r.live(); err != nil {
		return false, r.wrap(err)
	}

	rel, err := parsePath(path)
	if err != nil {
		return false, r.wrap(err)
	}

	if r.doc.has(r.address(), rel) {
		return false, nil
	}

	err = r.SetValueAt(path, value)

	return err == nil, err
}

// DeleteValueAt removes the value at path. Absent paths are a no-op.
func (r *Region) DeleteValueAt(path string) error {
	_, err := r.PopValueAt(path)
	if errors.Is(err, ErrNotFound) {
		return nil
	}

	return err
}

// PopValueAt removes the value at path and returns it. Use [Region.Delete]
// to remove the region itself.
func (r *Region) PopValueAt(path string) (any, error) {
	if err := r.live(); err != nil {
		return nil, r.wrap(err)
	}

	v, err := r.doc.pop(r.address(), path)
	if err != nil {
		return nil, r.wrap(err)
	}

	r.markDirty()

	return v, nil
}

// AppendValueAt appends value to the sequence at path.
func (r *Region) AppendValueAt(path string, value any) error {
	if err := r.live(); err != nil {
		return r.wrap(err)
	}

	err := r.doc.appendAt(r.address(), path, value)
	if err != nil {
		return r.wrap(err)
	}

	r.markDirty()

	return nil
}

// Children returns the regions of collection below this region.
func (r *Region) Children(collection string) ([]*Region, error) {
	regions, err := children(r, collection)

	return regions, r.wrap(err)
}

// Child returns the region of collection whose identity is identity.
func (r *Region) Child(collection, identity string) (*Region, error) {
	c, err := child(r, collection, identity)

	return c, withContext(err, kindName(r.kind), identity, r.doc.filePath())
}

// Create adds a region to collection below this region.
func (r *Region) Create(collection, identity string, content any) (*Region, error) {
	c, err := create(r, collection, identity, content)

	return c, withContext(err, kindName(r.kind), identity, r.doc.filePath())
}

// Property returns the named schema property.
func (r *Region) Property(name string) (any, error) {
	v, err := getProperty(r, name)

	return v, r.wrap(err)
}

// SetProperty writes the named schema property.
func (r *Region) SetProperty(name string, value any) error {
	return r.wrap(setProperty(r, name, value))
}

// Delete removes the region from its document now.
func (r *Region) Delete() error {
	if err := r.live(); err != nil {
		return r.wrap(err)
	}

	if _, err := r.doc.remove(r.address()); err != nil {
		return r.wrap(err)
	}

	r.markDirty()

	return nil
}

// MarkForDeletion removes the region at the next save of its file. Until
// then it stays readable and writable, and renames keep the mark.
func (r *Region) MarkForDeletion() error {
	if err := r.live(); err != nil {
		return r.wrap(err)
	}

	if r.state == Pending {
		return nil
	}

	r.state = Pending
	r.doc.pending = append(r.doc.pending, r)
	r.markDirty()

	return nil
}

// --- holder ---

func (r *Region) owner() *Document {
	return r.doc
}

func (r *Region) address() jsonpath.Path {
	return r.parent.address().Join(r.rel)
}

func (r *Region) regionCache() regionCache {
	return r.regions
}

// markDirty marks the region and every ancestor up to the document.
func (r *Region) markDirty() {
	r.dirty = true
	r.parent.markDirty()
}

func (r *Region) live() error {
	if r.state == Removed || r.doc.state == Removed {
		return ErrRemoved
	}

	return nil
}

func (r *Region) kindOf() *Kind {
	return r.kind
}

func (r *Region) wrap(err error) error {
	if err == nil {
		return nil
	}

	id := ""
	if r.state != Removed {
		if v, idErr := r.identity(); idErr == nil {
			id = v
		}
	}

	return withContext(err, kindName(r.kind), id, r.doc.filePath())
}

// drop detaches the region and everything below it.
func (r *Region) drop() {
	delete(r.parent.regionCache(), keyFor(r.coll.name, r.rel))

	r.state = Removed
	r.regions.walk(func(c *Region) { c.state = Removed })
	r.regions = regionCache{}
}

// relocate moves the region to a new address within its parent.
func (r *Region) relocate(rel jsonpath.Path) {
	cache := r.parent.regionCache()

	delete(cache, keyFor(r.coll.name, r.rel))

	r.rel = rel
	cache[keyFor(r.coll.name, rel)] = r
}

// --- collections ---

func collectionOf(h holder, name string) (*Collection, error) {
	k := h.kindOf()
	if k == nil {
		return nil, fmt.Errorf("%w: collection %q: node has no kind", ErrNotFound, name)
	}

	c, ok := k.Collection(name)
	if !ok {
		return nil, fmt.Errorf("%w: kind %q has no collection %q", ErrNotFound, k.name, name)
	}

	return c, nil
}

func children(h holder, name string) ([]*Region, error) {
	if err := h.live(); err != nil {
		return nil, err
	}

	coll, err := collectionOf(h, name)
	if err != nil {
		return nil, err
	}

	scope, err := jsonpath.Get(h.owner().value, h.address())
	if err != nil {
		return nil, err
	}

	matches := jsonpath.All(scope, coll.template)
	cache := h.regionCache()
	seen := make(map[cacheKey]bool, len(matches))
	out := make([]*Region, 0, len(matches))

	for _, m := range matches {
		key := keyFor(coll.name, m.Path)

		r, ok := cache[key]
		if !ok {
			r = newRegion(h, coll, m.Path)
			cache[key] = r
		}

		seen[key] = true

		out = append(out, r)
	}

	for key, r := range cache {
		if key.coll == coll.name && !seen[key] {
			r.drop()
		}
	}

	return out, nil
}

func child(h holder, name, id string) (*Region, error) {
	regions, err := children(h, name)
	if err != nil {
		return nil, err
	}

	for _, r := range regions {
		if got, err := r.identity(); err == nil && got == id {
			return r, nil
		}
	}

	return nil, fmt.Errorf("%w: %s %q", ErrNotFound, name, id)
}

// create appends a new region to collection at the next free slot: the end
// of a sequence, or a new key in a mapping.
func create(h holder, name, id string, content any) (*Region, error) {
	if err := h.live(); err != nil {
		return nil, err
	}

	coll, err := collectionOf(h, name)
	if err != nil {
		return nil, err
	}

	if id == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrPath)
	}

	if _, err := child(h, name, id); err == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrExists, name, id)
	}

	value, err := rootValue(content)
	if err != nil {
		return nil, err
	}

	if coll.hasIdentity {
		if _, ok := value.(*jsonv.Object); !ok {
			return nil, fmt.Errorf("%w: %s with identity field must be a mapping", ErrType, name)
		}

		value, err = jsonpath.Set(value, coll.identity, id)
		if err != nil {
			return nil, err
		}
	}

	doc := h.owner()
	base := h.address()
	slotsAt := base.Join(coll.slots)

	var rel jsonpath.Path

	m, err := jsonpath.Locate(doc.value, slotsAt)

	switch {
	case errors.Is(err, ErrNotFound):
		if !coll.slots.IsConcrete() {
			return nil, fmt.Errorf("%w: %s: no container at %s", ErrPath, name, slotsAt)
		}

		var fresh any

		if coll.keyed() {
			obj := jsonv.NewObject()
			obj.Set(id, value)
			fresh, rel = obj, coll.slots.Key(id)
		} else {
			fresh, rel = jsonv.NewArray(value), coll.slots.Index(0)
		}

		root, err := jsonpath.Set(doc.value, slotsAt, fresh)
		if err != nil {
			return nil, err
		}

		doc.value = root
	case err != nil:
		return nil, err
	default:
		concrete := trimBase(m.Path, base)

		switch c := m.Value.(type) {
		case *jsonv.Object:
			if c.Has(id) {
				return nil, fmt.Errorf("%w: %s", ErrExists, m.Path.Key(id))
			}

			c.Set(id, value)
			rel = concrete.Key(id)
		case *jsonv.Array:
			c.Elems = append(c.Elems, value)
			rel = concrete.Index(len(c.Elems) - 1)
		default:
			return nil, fmt.Errorf("%w: %s: slots at %s are %s", ErrType, name, m.Path, jsonv.TypeName(m.Value))
		}
	}

	r := newRegion(h, coll, rel)
	h.regionCache()[keyFor(coll.name, rel)] = r
	r.markDirty()

	return r, nil
}

// trimBase returns p relative to base. p must have base as prefix.
func trimBase(p, base jsonpath.Path) jsonpath.Path {
	return jsonpath.New(p.Segments()[base.Len():]...)
}

// removeBefore orders pending removals: deeper locations first, then
// sequence slots before keyed slots, then higher indices first.
func removeBefore(a, b jsonpath.Path) bool {
	if a.Len() != b.Len() {
		return a.Len() > b.Len()
	}

	ia, okA := slotIndex(a)
	ib, okB := slotIndex(b)

	if okA != okB {
		return okA
	}

	return okA && ia > ib
}

// slotIndex returns the sequence index of the last segment of p, if it is
// one.
func slotIndex(p jsonpath.Path) (int, bool) {
	last, ok := p.Last()
	if !ok || !last.Bracketed {
		return 0, false
	}

	return last.Index()
}

// applyPending removes every region marked for deletion in [removeBefore]
// order.
func (d *Document) applyPending() error {
	pending := make([]*Region, 0, len(d.pending))

	for _, r := range d.pending {
		if r.state == Pending {
			pending = append(pending, r)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return removeBefore(pending[i].address(), pending[j].address())
	})

	var (
		errs []error
		left []*Region
	)

	for _, r := range pending {
		if r.state != Pending {
			continue
		}

		if _, err := d.remove(r.address()); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", r.address(), err))
			left = append(left, r)
		}
	}

	d.pending = left

	return errors.Join(errs...)
}
