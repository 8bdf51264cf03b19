package packdb

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Project pairs the two packs of an add-on and resolves counterparts
// between them by identity.
type Project struct {
	packs []*Pack
}

// NewProject pairs a and b. They must hold different pack sides.
func NewProject(a, b *Pack) (*Project, error) {
	if a == nil || b == nil {
		return nil, errors.New("project needs two packs")
	}

	if a.side == b.side {
		return nil, fmt.Errorf("both packs hold side %q", a.side)
	}

	return &Project{packs: []*Pack{a, b}}, nil
}

// Pack returns the pack holding side, or nil.
func (p *Project) Pack(side string) *Pack {
	for _, pk := range p.packs {
		if pk.side == side {
			return pk
		}
	}

	return nil
}

// Packs returns both packs.
func (p *Project) Packs() []*Pack {
	return []*Pack{p.packs[0], p.packs[1]}
}

// Other returns the pack paired with pk, or nil if pk is not part of the
// project.
func (p *Project) Other(pk *Pack) *Pack {
	switch pk {
	case p.packs[0]:
		return p.packs[1]
	case p.packs[1]:
		return p.packs[0]
	default:
		return nil
	}
}

// Counterpart returns the document of doc's linked kind in the other pack
// with the same identity. It never returns a partial match; anything else
// is [ErrNotFound].
func (p *Project) Counterpart(doc *FileDocument) (*FileDocument, error) {
	if err := doc.live(); err != nil {
		return nil, doc.wrap(err)
	}

	if doc.pack == nil {
		return nil, doc.wrap(ErrFloating)
	}

	other := p.Other(doc.pack)
	if other == nil {
		return nil, doc.wrap(fmt.Errorf("%w: document's pack is not part of the project", ErrNotFound))
	}

	link := doc.kind.link
	if link == nil {
		return nil, doc.wrap(fmt.Errorf("%w: kind %q has no link", ErrNotFound, doc.kind.name))
	}

	if link.pack != other.side {
		return nil, doc.wrap(fmt.Errorf("%w: link %q is not in pack %q", ErrNotFound, link.name, other.side))
	}

	id, err := doc.identity()
	if err != nil {
		return nil, doc.wrap(err)
	}

	return other.Get(link.name, id)
}

// Save saves both packs. Failures of both are reported together.
func (p *Project) Save(force bool) error {
	return joinBatches("save", p.packs[0].Save(force), p.packs[1].Save(force))
}

// SetOutputDir makes each pack write to dir/<base name of its root>.
func (p *Project) SetOutputDir(dir string) {
	for _, pk := range p.packs {
		pk.SetOutputDir(filepath.Join(dir, filepath.Base(pk.root)))
	}
}
