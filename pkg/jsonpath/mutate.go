package jsonpath

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/packdb/pkg/jsonv"
)

// Set stores value at p and returns the (possibly new) root.
//
// Missing containers along concrete segments are created: a sequence when the
// next segment is bracketed, a mapping otherwise. An index equal to the
// sequence length appends. A path with wildcards writes where [Get] would
// read; see [Target]. Setting the root path returns value itself.
//
// On error root is left unchanged.
func Set(root any, p Path, value any) (any, error) {
	if p.IsRoot() {
		return value, nil
	}

	loc, err := Target(root, p)
	if err != nil {
		return root, err
	}

	return setConcrete(root, loc, value)
}

// Target returns the concrete location [Set] writes p to.
//
// A concrete p is its own target. Otherwise p must resolve to a single
// existing value, or, failing that, its parent must and its last segment
// must be a literal. Anything else is [ErrPath] (or [ErrAmbiguous]).
func Target(root any, p Path) (Path, error) {
	if p.IsConcrete() {
		return p, nil
	}

	m, err := Locate(root, p)
	if err == nil {
		return m.Path, nil
	}

	if !isNotFound(err) {
		return Path{}, err
	}

	parent, last, _ := p.Split()
	if last.Kind != Literal {
		return Path{}, wildcardTarget(p, err)
	}

	pm, err := Locate(root, parent)
	if err != nil {
		return Path{}, wildcardTarget(p, err)
	}

	return pm.Path.with(last), nil
}

func wildcardTarget(p Path, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s: wildcard segment has no target", ErrPath, p)
	}

	return err
}

// setConcrete walks the existing prefix of p, builds the missing suffix
// detached and attaches it with a single write.
func setConcrete(root any, p Path, value any) (any, error) {
	segs := p.segs

	if root == nil {
		built, err := build(segs, value, p)
		if err != nil {
			return root, err
		}

		return built, nil
	}

	cur := root

	for i := 0; i < len(segs)-1; i++ {
		child, _, ok := lookup(cur, segs[i])
		if !ok {
			sub, err := build(segs[i+1:], value, p)
			if err != nil {
				return root, err
			}

			err = setChild(cur, segs[i], sub, p)
			if err != nil {
				return root, err
			}

			return root, nil
		}

		if !jsonv.IsContainer(child) {
			return root, fmt.Errorf("%w: %s: %s at %s is not a container",
				ErrType, p, jsonv.TypeName(child), Path{segs: segs[:i+1]})
		}

		cur = child
	}

	err := setChild(cur, segs[len(segs)-1], value, p)
	if err != nil {
		return root, err
	}

	return root, nil
}

// build returns a fresh container chain that holds value at segs.
func build(segs []Segment, value any, full Path) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}

	inner, err := build(segs[1:], value, full)
	if err != nil {
		return nil, err
	}

	seg := segs[0]
	if seg.Bracketed {
		if idx, _ := seg.Index(); idx != 0 {
			return nil, fmt.Errorf("%w: %s: index %d out of range for new sequence", ErrPath, full, idx)
		}

		return jsonv.NewArray(inner), nil
	}

	obj := jsonv.NewObject()
	obj.Set(seg.Key, inner)

	return obj, nil
}

func setChild(container any, seg Segment, value any, full Path) error {
	switch c := container.(type) {
	case *jsonv.Object:
		c.Set(seg.Key, value)

		return nil
	case *jsonv.Array:
		idx, ok := seg.Index()
		if !ok {
			return fmt.Errorf("%w: %s: %q is not a sequence index", ErrType, full, seg.Key)
		}

		switch {
		case idx < len(c.Elems):
			c.Elems[idx] = value
		case idx == len(c.Elems):
			c.Elems = append(c.Elems, value)
		default:
			return fmt.Errorf("%w: %s: index %d out of range (len %d)", ErrPath, full, idx, len(c.Elems))
		}

		return nil
	default:
		return fmt.Errorf("%w: %s: cannot set member of %s", ErrType, full, jsonv.TypeName(container))
	}
}

// Delete removes the value at p. A path that does not resolve is a no-op.
// The root itself cannot be deleted.
func Delete(root any, p Path) error {
	_, err := Pop(root, p)
	if isNotFound(err) {
		return nil
	}

	return err
}

// Pop removes the value at p and returns it.
// Returns [ErrNotFound] if p does not resolve.
func Pop(root any, p Path) (any, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("%w: cannot remove the root value", ErrPath)
	}

	m, err := Locate(root, p)
	if err != nil {
		return nil, err
	}

	parentPath, last, _ := m.Path.Split()

	parent, err := Get(root, parentPath)
	if err != nil {
		return nil, err
	}

	switch c := parent.(type) {
	case *jsonv.Object:
		c.Delete(last.Key)
	case *jsonv.Array:
		idx, _ := last.Index()
		c.Elems = append(c.Elems[:idx], c.Elems[idx+1:]...)
	}

	return m.Value, nil
}

// Append adds value to the sequence at p and returns the (possibly new) root.
//
// A concrete p that does not resolve is created holding a one-element
// sequence. Returns [ErrType] if p holds something other than a sequence.
func Append(root any, p Path, value any) (any, error) {
	m, err := Locate(root, p)
	if err != nil {
		if isNotFound(err) && p.IsConcrete() {
			return Set(root, p, jsonv.NewArray(value))
		}

		return root, err
	}

	arr, ok := m.Value.(*jsonv.Array)
	if !ok {
		return root, fmt.Errorf("%w: %s: append to %s", ErrType, p, jsonv.TypeName(m.Value))
	}

	arr.Elems = append(arr.Elems, value)

	return root, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
