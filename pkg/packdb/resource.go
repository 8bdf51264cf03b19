package packdb

import (
	"fmt"

	"github.com/calvinalkan/packdb/pkg/jsonpath"
)

// State is the lifecycle state of a document or region.
type State uint8

const (
	// Live is the normal state.
	Live State = iota
	// Pending marks a resource for deletion at the next save of its file.
	// The resource stays readable and writable until then.
	Pending
	// Removed is terminal. Every operation fails with [ErrRemoved].
	Removed
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Pending:
		return "pending"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// resource holds the change tracking shared by documents and regions.
type resource struct {
	dirty bool
	state State
}

// Dirty reports whether the resource changed since it was loaded or saved.
func (r *resource) Dirty() bool {
	return r.dirty
}

// State returns the lifecycle state.
func (r *resource) State() State {
	return r.state
}

// holder is a node regions can hang off: a [Document] or a [Region].
type holder interface {
	owner() *Document
	address() jsonpath.Path
	regionCache() regionCache
	markDirty()
	live() error
	kindOf() *Kind
}

type cacheKey struct {
	coll string
	addr string
}

// regionCache maps a collection and an address relative to the holder to
// the materialized region.
type regionCache map[cacheKey]*Region

func keyFor(coll string, rel jsonpath.Path) cacheKey {
	return cacheKey{coll: coll, addr: rel.String()}
}

// walk calls fn for every region below c, parents before children.
func (c regionCache) walk(fn func(*Region)) {
	for _, r := range c {
		fn(r)
		r.regions.walk(fn)
	}
}

// descendants returns every region below c.
func (c regionCache) descendants() []*Region {
	var out []*Region

	c.walk(func(r *Region) { out = append(out, r) })

	return out
}

// detach drops every cached region addressed at or below loc from the
// document, except keep. Dropped regions are Removed.
func (d *Document) detach(loc jsonpath.Path, keep *Region) {
	for _, r := range d.regions.descendants() {
		if r == keep || r.state == Removed {
			continue
		}

		if r.address().HasPrefix(loc) {
			r.drop()
		}
	}
}

// shift re-addresses cached regions after the element at index idx of the
// sequence at arr was removed: regions under a later element move down one.
func (d *Document) shift(arr jsonpath.Path, idx int) {
	pos := arr.Len()

	for _, r := range d.regions.descendants() {
		if r.state == Removed {
			continue
		}

		base := r.parent.address().Len()
		rel := r.rel.Segments()

		if pos < base || pos >= base+len(rel) {
			continue
		}

		if !r.address().HasPrefix(arr) {
			continue
		}

		seg := rel[pos-base]

		n, ok := seg.Index()
		if !ok || n <= idx {
			continue
		}

		moved := jsonpath.New(rel[:pos-base]...).
			Index(n - 1).
			Join(jsonpath.New(rel[pos-base+1:]...))

		r.relocate(moved)
	}
}

// clearDirty resets dirty on the document and every cached region.
func (d *Document) clearDirty() {
	d.dirty = false

	d.regions.walk(func(r *Region) { r.dirty = false })
}
