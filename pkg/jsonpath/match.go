package jsonpath

import (
	"fmt"
	"strconv"

	"github.com/calvinalkan/packdb/pkg/jsonv"
)

// Match is a resolved location and the value found there.
type Match struct {
	// Path is concrete: sequence indices are bracketed, no wildcards.
	Path  Path
	Value any
}

type mode uint8

const (
	// modeFirst stops a "**" expansion at its first matching depth.
	modeFirst mode = iota
	// modeAll collects every expansion.
	modeAll
)

// All returns every match of p in document order. "**" contributes every
// depth at which the rest of the path matches, each location once.
func All(root any, p Path) []Match {
	matches := resolve(root, p.segs, Path{}, modeAll)

	seen := make(map[string]bool, len(matches))
	out := matches[:0]

	for _, m := range matches {
		key := m.Path.String()
		if seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, m)
	}

	return out
}

// Locate resolves p to exactly one location.
//
// Returns [ErrNotFound] when nothing matches and [ErrAmbiguous] when a "*"
// segment yields more than one match.
func Locate(root any, p Path) (Match, error) {
	matches := resolve(root, p.segs, Path{}, modeFirst)

	switch len(matches) {
	case 0:
		return Match{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	case 1:
		return matches[0], nil
	default:
		return Match{}, fmt.Errorf("%w: %s matched %d values", ErrAmbiguous, p, len(matches))
	}
}

// Get returns the value at p. The value is not copied.
func Get(root any, p Path) (any, error) {
	m, err := Locate(root, p)
	if err != nil {
		return nil, err
	}

	return m.Value, nil
}

// GetOr returns the value at p, or def if p does not resolve.
// Errors other than [ErrNotFound] are still returned.
func GetOr(root any, p Path, def any) (any, error) {
	m, err := Locate(root, p)
	if err != nil {
		if isNotFound(err) {
			return def, nil
		}

		return nil, err
	}

	return m.Value, nil
}

// Exists reports whether p resolves to a single value.
func Exists(root any, p Path) bool {
	_, err := Locate(root, p)

	return err == nil
}

func resolve(node any, segs []Segment, loc Path, m mode) []Match {
	if len(segs) == 0 {
		return []Match{{Path: loc, Value: node}}
	}

	seg, rest := segs[0], segs[1:]

	switch seg.Kind {
	case Literal:
		child, childSeg, ok := lookup(node, seg)
		if !ok {
			return nil
		}

		return resolve(child, rest, loc.with(childSeg), m)
	case Star:
		var out []Match

		eachChild(node, func(childSeg Segment, child any) {
			out = append(out, resolve(child, rest, loc.with(childSeg), m)...)
		})

		return out
	case DoubleStar:
		// Zero levels first, then each child in order, recursively.
		out := resolve(node, rest, loc, m)
		if m == modeFirst && len(out) > 0 {
			return out
		}

		var found bool

		eachChild(node, func(childSeg Segment, child any) {
			if found {
				return
			}

			sub := resolve(child, segs, loc.with(childSeg), m)
			out = append(out, sub...)

			if m == modeFirst && len(sub) > 0 {
				found = true
			}
		})

		return out
	}

	return nil
}

// lookup returns the child addressed by a literal segment together with its
// canonical concrete segment.
func lookup(node any, seg Segment) (any, Segment, bool) {
	switch n := node.(type) {
	case *jsonv.Object:
		v, ok := n.Get(seg.Key)
		if !ok {
			return nil, Segment{}, false
		}

		return v, Segment{Kind: Literal, Key: seg.Key}, true
	case *jsonv.Array:
		idx, ok := seg.Index()
		if !ok || idx >= len(n.Elems) {
			return nil, Segment{}, false
		}

		return n.Elems[idx], indexSegment(idx), true
	default:
		return nil, Segment{}, false
	}
}

func eachChild(node any, fn func(Segment, any)) {
	switch n := node.(type) {
	case *jsonv.Object:
		for _, k := range n.Keys() {
			v, _ := n.Get(k)
			fn(Segment{Kind: Literal, Key: k}, v)
		}
	case *jsonv.Array:
		for i, v := range n.Elems {
			fn(indexSegment(i), v)
		}
	}
}

func indexSegment(i int) Segment {
	return Segment{Kind: Literal, Key: strconv.Itoa(i), Bracketed: true}
}
