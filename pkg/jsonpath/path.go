// Package jsonpath addresses values inside a [jsonv] value tree.
//
// A path is a "/"-separated list of segments:
//
//	minecraft:entity/components/minecraft:health   literal keys
//	pools/[0]/rolls                                 sequence index ("0" works too)
//	minecraft:entity/components/*                   exactly one level, every member
//	**/description/identifier                       zero or more levels, first match
//
// The path "**" on its own, like the empty path, is the root value. Anywhere
// else "**" expands depth-first and the first expansion that matches wins.
//
// A literal "/" inside a key is written "\/", a literal backslash "\\", and a
// key that would read as a wildcard or index is prefixed with "\".
package jsonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	// ErrNotFound indicates the path does not resolve to a value.
	ErrNotFound = errors.New("path not found")

	// ErrPath indicates a malformed path or a path that cannot be applied.
	ErrPath = errors.New("invalid path")

	// ErrAmbiguous indicates a single-result operation matched more than once.
	ErrAmbiguous = fmt.Errorf("%w: ambiguous match", ErrPath)

	// ErrType indicates the value at a path has the wrong type for the operation.
	ErrType = errors.New("type mismatch")
)

// SegmentKind classifies a path segment.
type SegmentKind uint8

// Segment kinds.
const (
	Literal SegmentKind = iota
	Star
	DoubleStar
)

// Segment is one step of a [Path].
type Segment struct {
	Kind SegmentKind

	// Key is the member name or decimal index for Literal segments.
	Key string

	// Bracketed marks a literal written as "[n]". Set creates a sequence
	// instead of a mapping when such a segment has no container yet.
	Bracketed bool
}

// Index returns the segment as a sequence index.
func (s Segment) Index() (int, bool) {
	if s.Kind != Literal || s.Key == "" {
		return 0, false
	}

	for _, r := range s.Key {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	n, err := strconv.Atoi(s.Key)
	if err != nil {
		return 0, false
	}

	return n, true
}

func (s Segment) String() string {
	switch s.Kind {
	case Star:
		return "*"
	case DoubleStar:
		return "**"
	}

	if s.Bracketed {
		return "[" + s.Key + "]"
	}

	key := strings.ReplaceAll(s.Key, `\`, `\\`)
	key = strings.ReplaceAll(key, "/", `\/`)

	if key == "*" || key == "**" || strings.HasPrefix(key, "[") {
		key = `\` + key
	}

	return key
}

// Path is a parsed path. The zero value is the root path.
type Path struct {
	segs []Segment
}

// Root returns the root path.
func Root() Path {
	return Path{}
}

// New returns the path made of segs.
func New(segs ...Segment) Path {
	if len(segs) == 0 {
		return Path{}
	}

	out := make([]Segment, len(segs))
	copy(out, segs)

	return Path{segs: out}
}

// Parse parses s. One leading and trailing "/" are ignored.
func Parse(s string) (Path, error) {
	trimmed := strings.TrimPrefix(s, "/")
	if strings.HasSuffix(trimmed, "/") && !strings.HasSuffix(trimmed, `\/`) {
		trimmed = strings.TrimSuffix(trimmed, "/")
	}

	if trimmed == "" || trimmed == "**" {
		return Path{}, nil
	}

	var (
		segs    []Segment
		cur     strings.Builder
		escaped bool
	)

	flush := func() error {
		seg, err := parseSegment(cur.String(), escaped)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrPath, s, err)
		}

		segs = append(segs, seg)
		cur.Reset()

		escaped = false

		return nil
	}

	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]

		switch {
		case c == '\\':
			if i+1 >= len(trimmed) {
				return Path{}, fmt.Errorf("%w: %q: trailing backslash", ErrPath, s)
			}

			if cur.Len() == 0 {
				escaped = true
			}

			i++
			next := trimmed[i]

			if next != '/' && next != '\\' {
				// "\*" or "\[": the escape only marks the segment literal.
				cur.WriteByte(next)

				continue
			}

			cur.WriteByte(next)
		case c == '/':
			err := flush()
			if err != nil {
				return Path{}, err
			}
		default:
			cur.WriteByte(c)
		}
	}

	err := flush()
	if err != nil {
		return Path{}, err
	}

	return Path{segs: segs}, nil
}

// MustParse is like [Parse] but panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return p
}

func parseSegment(raw string, escaped bool) (Segment, error) {
	if raw == "" && !escaped {
		return Segment{}, errors.New("empty segment")
	}

	if escaped {
		return Segment{Kind: Literal, Key: raw}, nil
	}

	switch raw {
	case "*":
		return Segment{Kind: Star}, nil
	case "**":
		return Segment{Kind: DoubleStar}, nil
	}

	if inner, ok := strings.CutPrefix(raw, "["); ok {
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok {
			return Segment{}, fmt.Errorf("unterminated index %q", raw)
		}

		if inner == "*" {
			return Segment{Kind: Star}, nil
		}

		seg := Segment{Kind: Literal, Key: inner, Bracketed: true}
		if _, ok := seg.Index(); !ok {
			return Segment{}, fmt.Errorf("invalid index %q", raw)
		}

		return seg, nil
	}

	return Segment{Kind: Literal, Key: raw}, nil
}

// String formats the path so that Parse(p.String()) is equal to p.
func (p Path) String() string {
	parts := make([]string, len(p.segs))
	for i, seg := range p.segs {
		parts[i] = seg.String()
	}

	return strings.Join(parts, "/")
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segs)
}

// Segments returns a copy of the segments.
func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segs))
	copy(out, p.segs)

	return out
}

// IsRoot reports whether p addresses the root value.
func (p Path) IsRoot() bool {
	return len(p.segs) == 0
}

// IsConcrete reports whether p has no wildcard segments.
func (p Path) IsConcrete() bool {
	for _, seg := range p.segs {
		if seg.Kind != Literal {
			return false
		}
	}

	return true
}

// Join returns p followed by q.
func (p Path) Join(q Path) Path {
	segs := make([]Segment, 0, len(p.segs)+len(q.segs))
	segs = append(segs, p.segs...)
	segs = append(segs, q.segs...)

	return Path{segs: segs}
}

// Key returns p extended by the member name key.
func (p Path) Key(key string) Path {
	return p.with(Segment{Kind: Literal, Key: key})
}

// Index returns p extended by the sequence index i.
func (p Path) Index(i int) Path {
	return p.with(Segment{Kind: Literal, Key: strconv.Itoa(i), Bracketed: true})
}

func (p Path) with(seg Segment) Path {
	segs := make([]Segment, 0, len(p.segs)+1)
	segs = append(segs, p.segs...)
	segs = append(segs, seg)

	return Path{segs: segs}
}

// Split returns the parent path and the last segment. ok is false for the root.
func (p Path) Split() (Path, Segment, bool) {
	if len(p.segs) == 0 {
		return Path{}, Segment{}, false
	}

	return Path{segs: p.segs[:len(p.segs)-1]}, p.segs[len(p.segs)-1], true
}

// Last returns the last segment. ok is false for the root.
func (p Path) Last() (Segment, bool) {
	_, seg, ok := p.Split()

	return seg, ok
}

// WithLast returns p with its last segment replaced by seg.
func (p Path) WithLast(seg Segment) Path {
	parent, _, ok := p.Split()
	if !ok {
		return p
	}

	return parent.with(seg)
}

// HasPrefix reports whether q is a (not necessarily proper) prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q.segs) > len(p.segs) {
		return false
	}

	for i, seg := range q.segs {
		if !sameSegment(p.segs[i], seg) {
			return false
		}
	}

	return true
}

// Equal reports whether p and q address the same location.
func (p Path) Equal(q Path) bool {
	return len(p.segs) == len(q.segs) && p.HasPrefix(q)
}

func sameSegment(a, b Segment) bool {
	return a.Kind == b.Kind && a.Key == b.Key
}
