package packdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/calvinalkan/packdb/pkg/jsonpath"
	"github.com/calvinalkan/packdb/pkg/jsonv"
)

// Kind is a compiled schema kind. File kinds belong to a pack side and have
// a discovery rule; region kinds are reached through collections.
type Kind struct {
	name     string
	pack     string
	rule     Rule
	isFile   bool
	identity jsonpath.Path
	hasID    bool
	link     *Kind
	plural   string

	collections []*Collection
	properties  []*Property
	accessors   map[string]*Accessor
	order       []string
}

// Name returns the kind name.
func (k *Kind) Name() string { return k.name }

// Pack returns the pack side of a file kind, "" for region kinds.
func (k *Kind) Pack() string { return k.pack }

// IsFile reports whether documents of the kind are files.
func (k *Kind) IsFile() bool { return k.isFile }

// Rule returns the discovery rule of a file kind.
func (k *Kind) Rule() Rule { return k.rule }

// Link returns the kind linked in the other pack, or nil.
func (k *Kind) Link() *Kind { return k.link }

// PathIdentified reports whether files of the kind are identified by their
// pack path rather than by a field.
func (k *Kind) PathIdentified() bool { return k.isFile && !k.hasID }

// Collections returns the kind's collections in schema order.
func (k *Kind) Collections() []*Collection {
	out := make([]*Collection, len(k.collections))
	copy(out, k.collections)

	return out
}

// Collection returns the collection named name.
func (k *Kind) Collection(name string) (*Collection, bool) {
	for _, c := range k.collections {
		if c.name == name {
			return c, true
		}
	}

	return nil, false
}

// Properties returns the kind's properties in schema order.
func (k *Kind) Properties() []*Property {
	out := make([]*Property, len(k.properties))
	copy(out, k.properties)

	return out
}

// Property returns the property named name.
func (k *Kind) Property(name string) (*Property, bool) {
	for _, p := range k.properties {
		if p.name == name {
			return p, true
		}
	}

	return nil, false
}

// Accessor returns the synthesized accessor named name.
func (k *Kind) Accessor(name string) (*Accessor, bool) {
	a, ok := k.accessors[name]

	return a, ok
}

// Accessors returns every synthesized accessor in definition order.
func (k *Kind) Accessors() []*Accessor {
	out := make([]*Accessor, 0, len(k.order))
	for _, name := range k.order {
		out = append(out, k.accessors[name])
	}

	return out
}

// normalizeIdentity makes identities of path-identified kinds comparable
// regardless of separators and redundant elements.
func (k *Kind) normalizeIdentity(id string) string {
	if !k.PathIdentified() {
		return id
	}

	return path.Clean(strings.ReplaceAll(id, `\`, "/"))
}

// Collection is a compiled child collection.
type Collection struct {
	name     string
	parent   *Kind
	kind     *Kind
	template jsonpath.Path
	slots    jsonpath.Path

	identity    jsonpath.Path
	hasIdentity bool
	keySlot     bool
	flatten     bool

	plural   string
	singular string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Parent returns the kind holding the collection.
func (c *Collection) Parent() *Kind { return c.parent }

// Kind returns the kind of the collection's regions.
func (c *Collection) Kind() *Kind { return c.kind }

// Template returns the path template, relative to the parent's root.
func (c *Collection) Template() string { return c.template.String() }

// keyed reports whether the slot key is the identity.
func (c *Collection) keyed() bool {
	return !c.hasIdentity || c.keySlot
}

// Type is the value type of a [Property].
type Type string

// Property types.
const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBool    Type = "bool"
	TypeVersion Type = "version"
	TypeAny     Type = "any"
)

// Property is a compiled scalar property at a fixed path.
type Property struct {
	name       string
	path       jsonpath.Path
	typ        Type
	def        any
	hasDefault bool
}

// Name returns the property name.
func (p *Property) Name() string { return p.name }

// Type returns the property type.
func (p *Property) Type() Type { return p.typ }

// Path returns the property path relative to the node's root.
func (p *Property) Path() string { return p.path.String() }

// coerce converts a stored value to the property's Go representation.
func (p *Property) coerce(v any) (any, error) {
	switch p.typ {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, p.typeError(v)
		}

		return s, nil
	case TypeNumber:
		n, ok := v.(json.Number)
		if !ok {
			return nil, p.typeError(v)
		}

		return n, nil
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, p.typeError(v)
		}

		return b, nil
	case TypeVersion:
		return versionOf(v)
	default:
		return jsonv.Clone(v), nil
	}
}

// encode converts a Go value to the stored representation.
func (p *Property) encode(v any) (any, error) {
	if p.typ == TypeVersion {
		ver, err := versionOf(v)
		if err != nil {
			return nil, err
		}

		return ver.String(), nil
	}

	val, err := jsonv.From(v)
	if err != nil {
		return nil, fmt.Errorf("%w: property %q: %w", ErrType, p.name, err)
	}

	if p.typ == TypeAny {
		return val, nil
	}

	if _, err := p.coerce(val); err != nil {
		return nil, err
	}

	return val, nil
}

func (p *Property) typeError(v any) error {
	return fmt.Errorf("%w: property %q is %s, got %s", ErrType, p.name, p.typ, jsonv.TypeName(v))
}

func propertyOf(h holder, name string) (*Property, error) {
	k := h.kindOf()
	if k == nil {
		return nil, fmt.Errorf("%w: property %q: node has no kind", ErrNotFound, name)
	}

	p, ok := k.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w: kind %q has no property %q", ErrNotFound, k.name, name)
	}

	return p, nil
}

// getProperty reads a property, falling back to its default when absent.
func getProperty(h holder, name string) (any, error) {
	if err := h.live(); err != nil {
		return nil, err
	}

	p, err := propertyOf(h, name)
	if err != nil {
		return nil, err
	}

	v, err := jsonpath.Get(h.owner().value, h.address().Join(p.path))
	if err != nil {
		if !errors.Is(err, ErrNotFound) || !p.hasDefault {
			return nil, err
		}

		v = p.def
	}

	return p.coerce(v)
}

func setProperty(h holder, name string, value any) error {
	if err := h.live(); err != nil {
		return err
	}

	p, err := propertyOf(h, name)
	if err != nil {
		return err
	}

	val, err := p.encode(value)
	if err != nil {
		return err
	}

	self, _ := h.(*Region)

	err = h.owner().set(h.address(), p.path, val, self)
	if err != nil {
		return err
	}

	h.markDirty()

	return nil
}

// Op is the operation an [Accessor] performs.
type Op uint8

// Accessor operations.
const (
	// OpChildren lists a collection: f(node) []*Region.
	OpChildren Op = iota
	// OpChild finds a region by identity: f(node, id) *Region.
	OpChild
	// OpCreate adds a region: f(node, id, content) *Region.
	OpCreate
	// OpGet reads a property: f(node) value.
	OpGet
	// OpSet writes a property: f(node, value).
	OpSet
	// OpDocuments lists a file kind: f(pack) []*FileDocument.
	OpDocuments
	// OpDocument finds a file by identity: f(pack, id) *FileDocument.
	OpDocument
	// OpCreateDocument adds a file: f(pack, path, content) *FileDocument.
	OpCreateDocument
	// OpFlatten lists a collection across every file of a kind:
	// f(pack) []*Region.
	OpFlatten
)

var opNames = map[Op]string{
	OpChildren:       "children",
	OpChild:          "child",
	OpCreate:         "create",
	OpGet:            "get",
	OpSet:            "set",
	OpDocuments:      "documents",
	OpDocument:       "document",
	OpCreateDocument: "create-document",
	OpFlatten:        "flatten",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}

	return fmt.Sprintf("Op(%d)", uint8(o))
}

// packOp reports whether the operation runs against a [*Pack].
func (o Op) packOp() bool {
	return o >= OpDocuments
}

// Accessor is a synthesized, named operation of a kind or a pack side.
type Accessor struct {
	Name string
	Op   Op

	// Kind is the kind the accessor belongs to. For pack accessors it is
	// the file kind listed, found or created.
	Kind *Kind

	// Collection is set for collection and flatten accessors.
	Collection *Collection

	// Property is set for property accessors.
	Property *Property
}

// Invoke runs the accessor against target, a [Node] for kind accessors or a
// [*Pack] for pack accessors. Argument count and types follow [Op].
func (a *Accessor) Invoke(target any, args ...any) (any, error) {
	if a.Op.packOp() {
		p, ok := target.(*Pack)
		if !ok {
			return nil, fmt.Errorf("%w: accessor %q needs a pack, got %T", ErrType, a.Name, target)
		}

		return a.invokePack(p, args)
	}

	n, ok := target.(Node)
	if !ok {
		return nil, fmt.Errorf("%w: accessor %q needs a node, got %T", ErrType, a.Name, target)
	}

	return a.invokeNode(n, args)
}

func (a *Accessor) invokeNode(n Node, args []any) (any, error) {
	switch a.Op {
	case OpChildren:
		if err := a.arity(args, 0); err != nil {
			return nil, err
		}

		return n.Children(a.Collection.name)
	case OpChild:
		id, err := a.stringArg(args, 1, 0)
		if err != nil {
			return nil, err
		}

		return n.Child(a.Collection.name, id)
	case OpCreate:
		if len(args) == 1 {
			args = append(args, nil)
		}

		id, err := a.stringArg(args, 2, 0)
		if err != nil {
			return nil, err
		}

		return n.Create(a.Collection.name, id, args[1])
	case OpGet:
		if err := a.arity(args, 0); err != nil {
			return nil, err
		}

		return n.Property(a.Property.name)
	case OpSet:
		if err := a.arity(args, 1); err != nil {
			return nil, err
		}

		return nil, n.SetProperty(a.Property.name, args[0])
	default:
		return nil, fmt.Errorf("%w: accessor %q: unsupported op %s", ErrType, a.Name, a.Op)
	}
}

func (a *Accessor) invokePack(p *Pack, args []any) (any, error) {
	switch a.Op {
	case OpDocuments:
		if err := a.arity(args, 0); err != nil {
			return nil, err
		}

		return p.Documents(a.Kind.name)
	case OpDocument:
		id, err := a.stringArg(args, 1, 0)
		if err != nil {
			return nil, err
		}

		return p.Get(a.Kind.name, id)
	case OpCreateDocument:
		if len(args) == 1 {
			args = append(args, nil)
		}

		rel, err := a.stringArg(args, 2, 0)
		if err != nil {
			return nil, err
		}

		return p.Create(a.Kind.name, rel, args[1])
	case OpFlatten:
		if err := a.arity(args, 0); err != nil {
			return nil, err
		}

		return p.Regions(a.Collection.parent.name, a.Collection.name)
	default:
		return nil, fmt.Errorf("%w: accessor %q: unsupported op %s", ErrType, a.Name, a.Op)
	}
}

func (a *Accessor) arity(args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: accessor %q takes %d arguments, got %d", ErrType, a.Name, n, len(args))
	}

	return nil
}

func (a *Accessor) stringArg(args []any, n, i int) (string, error) {
	if err := a.arity(args, n); err != nil {
		return "", err
	}

	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: accessor %q argument %d must be a string, got %T", ErrType, a.Name, i, args[i])
	}

	return s, nil
}

// Call invokes the accessor named name on n's kind.
func Call(n Node, name string, args ...any) (any, error) {
	k := n.Kind()
	if k == nil {
		return nil, fmt.Errorf("%w: accessor %q: node has no kind", ErrNotFound, name)
	}

	a, ok := k.Accessor(name)
	if !ok {
		return nil, fmt.Errorf("%w: kind %q has no accessor %q", ErrNotFound, k.name, name)
	}

	return a.Invoke(n, args...)
}
