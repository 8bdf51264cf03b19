package packdb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/packdb/pkg/jsonpath"
	"github.com/calvinalkan/packdb/pkg/jsonv"
)

// Schema is the declarative description of every kind, as read from a
// JSONC schema file.
//
//	{
//	  "kinds": {
//	    "entity": {
//	      "pack": "behavior",
//	      "discover": {"folder": "entities", "extension": ".json"},
//	      "identity": "minecraft:entity/description/identifier",
//	      "link": "client_entity",
//	      "properties": [{"name": "format_version", "path": "format_version", "type": "version"}]
//	    },
//	    "component": {}
//	  },
//	  "collections": [
//	    {"parent": "entity", "name": "components", "kind": "component",
//	     "path": "minecraft:entity/components/*"}
//	  ]
//	}
type Schema struct {
	Kinds       map[string]KindSpec `json:"kinds"`
	Collections []CollectionSpec    `json:"collections"`
}

// KindSpec declares a kind. File kinds set Pack and Discover.
type KindSpec struct {
	Pack     string `json:"pack,omitempty"`
	Discover *Rule  `json:"discover,omitempty"`

	// Identity is the path of the identity field, "**" allowed. File kinds
	// without one are identified by their pack path.
	Identity string `json:"identity,omitempty"`

	// Link names the kind holding counterparts in the other pack.
	Link string `json:"link,omitempty"`

	// Plural overrides the pack-level list accessor name (default name+"s").
	Plural string `json:"plural,omitempty"`

	Properties []PropertySpec `json:"properties,omitempty"`
}

// PropertySpec declares a scalar property at a fixed path.
type PropertySpec struct {
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	Type    Type            `json:"type,omitempty"`
	Default json.RawMessage `json:"default,omitempty"`
}

// CollectionSpec declares a child collection of a kind.
type CollectionSpec struct {
	Parent string `json:"parent"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`

	// Path is the template, relative to the parent's root, ending in "*".
	Path string `json:"path"`

	// Identity is the path of the identity field inside a member. Without
	// it the slot key is the identity.
	Identity string `json:"identity,omitempty"`

	// KeySlot marks collections whose slot key mirrors the identity field.
	KeySlot bool `json:"key_slot,omitempty"`

	// Flatten adds a pack-level accessor listing the collection across
	// every file of the parent kind.
	Flatten bool `json:"flatten,omitempty"`

	Plural   string `json:"plural,omitempty"`
	Singular string `json:"singular,omitempty"`
}

// Registry is a compiled schema.
type Registry struct {
	kinds map[string]*Kind
	names []string

	packAccessors map[string]map[string]*Accessor
	packOrder     map[string][]string
}

// ParseSchema decodes a JSONC schema. Unknown fields are rejected.
func ParseSchema(data []byte) (Schema, error) {
	standardized, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return Schema{}, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var s Schema

	err = dec.Decode(&s)
	if err != nil {
		return Schema{}, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	return s, nil
}

// LoadSchema parses and compiles a JSONC schema.
func LoadSchema(data []byte) (*Registry, error) {
	s, err := ParseSchema(data)
	if err != nil {
		return nil, err
	}

	return Compile(s)
}

// Compile validates s and synthesizes every kind's accessors. Any dangling
// reference, malformed path or name collision fails with [ErrSchema].
func Compile(s Schema) (*Registry, error) {
	reg := &Registry{
		kinds:         make(map[string]*Kind, len(s.Kinds)),
		packAccessors: make(map[string]map[string]*Accessor),
		packOrder:     make(map[string][]string),
	}

	for name := range s.Kinds {
		reg.names = append(reg.names, name)
	}

	sort.Strings(reg.names)

	for _, name := range reg.names {
		k, err := compileKind(name, s.Kinds[name])
		if err != nil {
			return nil, err
		}

		reg.kinds[name] = k
	}

	for _, name := range reg.names {
		spec := s.Kinds[name]
		if spec.Link == "" {
			continue
		}

		k := reg.kinds[name]

		link, ok := reg.kinds[spec.Link]

		switch {
		case !ok:
			return nil, schemaErr("kind %q: unknown link kind %q", name, spec.Link)
		case !k.isFile || !link.isFile:
			return nil, schemaErr("kind %q: only file kinds can link, %q to %q", name, name, spec.Link)
		case link.pack == k.pack:
			return nil, schemaErr("kind %q: link %q is in the same pack %q", name, spec.Link, k.pack)
		}

		k.link = link
	}

	for i, spec := range s.Collections {
		c, err := reg.compileCollection(spec)
		if err != nil {
			return nil, fmt.Errorf("collection %d: %w", i, err)
		}

		if _, dup := c.parent.Collection(c.name); dup {
			return nil, schemaErr("kind %q: duplicate collection %q", c.parent.name, c.name)
		}

		c.parent.collections = append(c.parent.collections, c)
	}

	for _, name := range reg.names {
		if err := synthesizeKind(reg.kinds[name]); err != nil {
			return nil, err
		}
	}

	if err := reg.synthesizePacks(); err != nil {
		return nil, err
	}

	return reg, nil
}

// Kind returns the kind named name.
func (r *Registry) Kind(name string) (*Kind, bool) {
	k, ok := r.kinds[name]

	return k, ok
}

// Kinds returns every kind sorted by name.
func (r *Registry) Kinds() []*Kind {
	out := make([]*Kind, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.kinds[name])
	}

	return out
}

// FileKinds returns the file kinds of pack side, sorted by name.
func (r *Registry) FileKinds(pack string) []*Kind {
	var out []*Kind

	for _, name := range r.names {
		if k := r.kinds[name]; k.isFile && k.pack == pack {
			out = append(out, k)
		}
	}

	return out
}

// Packs returns the declared pack sides, sorted.
func (r *Registry) Packs() []string {
	var out []string

	for _, name := range r.names {
		if k := r.kinds[name]; k.isFile && !slices.Contains(out, k.pack) {
			out = append(out, k.pack)
		}
	}

	sort.Strings(out)

	return out
}

// PackAccessor returns the pack-level accessor named name on side pack.
func (r *Registry) PackAccessor(pack, name string) (*Accessor, bool) {
	a, ok := r.packAccessors[pack][name]

	return a, ok
}

// PackAccessors returns the pack-level accessors of side pack.
func (r *Registry) PackAccessors(pack string) []*Accessor {
	names := r.packOrder[pack]
	out := make([]*Accessor, 0, len(names))

	for _, name := range names {
		out = append(out, r.packAccessors[pack][name])
	}

	return out
}

func compileKind(name string, spec KindSpec) (*Kind, error) {
	if name == "" {
		return nil, schemaErr("empty kind name")
	}

	k := &Kind{
		name:      name,
		pack:      spec.Pack,
		plural:    spec.Plural,
		accessors: make(map[string]*Accessor),
	}

	switch {
	case spec.Pack != "" && spec.Discover == nil:
		return nil, schemaErr("kind %q: pack kind without discover rule", name)
	case spec.Pack == "" && spec.Discover != nil:
		return nil, schemaErr("kind %q: discover rule without pack", name)
	case spec.Discover != nil:
		rule, err := compileRule(*spec.Discover)
		if err != nil {
			return nil, schemaErr("kind %q: %v", name, err)
		}

		k.rule = rule
		k.isFile = true
	}

	if k.plural == "" {
		k.plural = name + "s"
	}

	if spec.Identity != "" {
		p, err := identityPath(spec.Identity)
		if err != nil {
			return nil, schemaErr("kind %q: identity: %v", name, err)
		}

		k.identity, k.hasID = p, true
	}

	for _, ps := range spec.Properties {
		p, err := compileProperty(ps)
		if err != nil {
			return nil, schemaErr("kind %q: %v", name, err)
		}

		if _, dup := k.Property(p.name); dup {
			return nil, schemaErr("kind %q: duplicate property %q", name, p.name)
		}

		k.properties = append(k.properties, p)
	}

	return k, nil
}

func compileRule(r Rule) (Rule, error) {
	folder := path.Clean(strings.ReplaceAll(r.Folder, `\`, "/"))
	if r.Folder == "" || folder == "." || strings.HasPrefix(folder, "/") || strings.HasPrefix(folder, "..") {
		return Rule{}, fmt.Errorf("invalid discover folder %q", r.Folder)
	}

	ext := r.Extension
	if ext == "" {
		ext = ".json"
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return Rule{Folder: folder, Extension: ext}, nil
}

func compileProperty(spec PropertySpec) (*Property, error) {
	if spec.Name == "" {
		return nil, errors.New("property without name")
	}

	p, err := concretePath(spec.Path)
	if err != nil || p.IsRoot() {
		return nil, fmt.Errorf("property %q: invalid path %q", spec.Name, spec.Path)
	}

	typ := spec.Type
	if typ == "" {
		typ = TypeAny
	}

	switch typ {
	case TypeString, TypeNumber, TypeBool, TypeVersion, TypeAny:
	default:
		return nil, fmt.Errorf("property %q: unknown type %q", spec.Name, typ)
	}

	prop := &Property{name: spec.Name, path: p, typ: typ}

	if len(spec.Default) > 0 {
		def, err := jsonv.Parse(spec.Default)
		if err != nil {
			return nil, fmt.Errorf("property %q: default: %w", spec.Name, err)
		}

		if _, err := prop.coerce(def); err != nil {
			return nil, fmt.Errorf("property %q: default: %w", spec.Name, err)
		}

		if typ == TypeVersion {
			ver, _ := versionOf(def)
			def = ver.String()
		}

		prop.def, prop.hasDefault = def, true
	}

	return prop, nil
}

func (r *Registry) compileCollection(spec CollectionSpec) (*Collection, error) {
	if spec.Name == "" {
		return nil, schemaErr("collection without name")
	}

	parent, ok := r.kinds[spec.Parent]
	if !ok {
		return nil, schemaErr("collection %q: unknown parent kind %q", spec.Name, spec.Parent)
	}

	kind, ok := r.kinds[spec.Kind]
	if !ok {
		return nil, schemaErr("collection %q: unknown kind %q", spec.Name, spec.Kind)
	}

	if kind.isFile {
		return nil, schemaErr("collection %q: kind %q is a file kind", spec.Name, spec.Kind)
	}

	template, err := jsonpath.Parse(spec.Path)
	if err != nil {
		return nil, schemaErr("collection %q: template: %v", spec.Name, err)
	}

	slots, last, ok := template.Split()
	if !ok || last.Kind != jsonpath.Star {
		return nil, schemaErr("collection %q: template %q must end in \"*\"", spec.Name, spec.Path)
	}

	for _, seg := range slots.Segments() {
		if seg.Kind == jsonpath.Star {
			return nil, schemaErr("collection %q: template %q has \"*\" before the last segment", spec.Name, spec.Path)
		}
	}

	c := &Collection{
		name:     spec.Name,
		parent:   parent,
		kind:     kind,
		template: template,
		slots:    slots,
		keySlot:  spec.KeySlot,
		flatten:  spec.Flatten,
		plural:   spec.Plural,
		singular: spec.Singular,
	}

	if spec.Identity != "" {
		id, err := concretePath(spec.Identity)
		if err != nil || id.IsRoot() {
			return nil, schemaErr("collection %q: invalid identity %q", spec.Name, spec.Identity)
		}

		c.identity, c.hasIdentity = id, true
	} else if spec.KeySlot {
		return nil, schemaErr("collection %q: key_slot without identity", spec.Name)
	}

	if spec.Flatten && !parent.isFile {
		return nil, schemaErr("collection %q: flatten needs a file parent kind", spec.Name)
	}

	if c.plural == "" {
		c.plural = c.name
	}

	if c.singular == "" {
		c.singular = singular(c.plural)
	}

	return c, nil
}

// synthesizeKind derives the accessors of k from its collections and
// properties.
func synthesizeKind(k *Kind) error {
	add := func(a *Accessor) error {
		if _, dup := k.accessors[a.Name]; dup {
			return schemaErr("kind %q: accessor name collision %q", k.name, a.Name)
		}

		k.accessors[a.Name] = a
		k.order = append(k.order, a.Name)

		return nil
	}

	for _, c := range k.collections {
		accessors := []*Accessor{
			{Name: c.plural, Op: OpChildren, Kind: k, Collection: c},
			{Name: c.singular, Op: OpChild, Kind: k, Collection: c},
			{Name: "add_" + c.singular, Op: OpCreate, Kind: k, Collection: c},
		}

		for _, a := range accessors {
			if err := add(a); err != nil {
				return err
			}
		}
	}

	for _, p := range k.properties {
		if err := add(&Accessor{Name: p.name, Op: OpGet, Kind: k, Property: p}); err != nil {
			return err
		}

		if err := add(&Accessor{Name: "set_" + p.name, Op: OpSet, Kind: k, Property: p}); err != nil {
			return err
		}
	}

	return nil
}

// synthesizePacks derives pack-level accessors per side: list, get and
// create per file kind, plus flattened collections.
func (r *Registry) synthesizePacks() error {
	for _, side := range r.Packs() {
		names := make(map[string]*Accessor)

		add := func(a *Accessor) error {
			if _, dup := names[a.Name]; dup {
				return schemaErr("pack %q: accessor name collision %q", side, a.Name)
			}

			names[a.Name] = a
			r.packOrder[side] = append(r.packOrder[side], a.Name)

			return nil
		}

		for _, k := range r.FileKinds(side) {
			accessors := []*Accessor{
				{Name: k.plural, Op: OpDocuments, Kind: k},
				{Name: k.name, Op: OpDocument, Kind: k},
				{Name: "add_" + k.name, Op: OpCreateDocument, Kind: k},
			}

			for _, a := range accessors {
				if err := add(a); err != nil {
					return err
				}
			}

			for _, c := range k.collections {
				if !c.flatten {
					continue
				}

				if err := add(&Accessor{Name: c.plural, Op: OpFlatten, Kind: c.kind, Collection: c}); err != nil {
					return err
				}
			}
		}

		r.packAccessors[side] = names
	}

	return nil
}

func concretePath(s string) (jsonpath.Path, error) {
	p, err := jsonpath.Parse(s)
	if err != nil {
		return jsonpath.Path{}, err
	}

	if !p.IsConcrete() {
		return jsonpath.Path{}, fmt.Errorf("%q has wildcards", s)
	}

	return p, nil
}

// identityPath parses a file kind's identity path, which may use "**" but
// not "*".
func identityPath(s string) (jsonpath.Path, error) {
	p, err := jsonpath.Parse(s)
	if err != nil {
		return jsonpath.Path{}, err
	}

	if p.IsRoot() {
		return jsonpath.Path{}, fmt.Errorf("%q is the root", s)
	}

	for _, seg := range p.Segments() {
		if seg.Kind == jsonpath.Star {
			return jsonpath.Path{}, fmt.Errorf("%q has \"*\"", s)
		}
	}

	return p, nil
}

// singular derives the one-item accessor name from a plural name.
func singular(plural string) string {
	switch {
	case strings.HasSuffix(plural, "ies") && len(plural) > 3:
		return strings.TrimSuffix(plural, "ies") + "y"
	case strings.HasSuffix(plural, "s") && !strings.HasSuffix(plural, "ss"):
		return strings.TrimSuffix(plural, "s")
	default:
		return plural
	}
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}
