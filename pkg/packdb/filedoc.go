package packdb

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/packdb/pkg/jsonpath"
)

const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// FileDocument is a [Document] stored at a pack-relative path.
//
// A FileDocument created with [NewFileDocument] is floating until it is
// registered to a [Pack]; floating documents cannot be saved.
type FileDocument struct {
	Document

	pack *Pack
	path string

	// persisted is the path last written (or loaded), "" for new documents.
	persisted string

	indexed   bool
	indexedID string
}

// NewFileDocument returns a floating document of kind at rel holding
// content. See [NewDocument] for content.
func NewFileDocument(kind *Kind, rel string, content any) (*FileDocument, error) {
	if kind == nil || !kind.isFile {
		return nil, fmt.Errorf("%w: %s is not a file kind", ErrType, kindName(kind))
	}

	clean, err := normalizePath(rel)
	if err != nil {
		return nil, withContext(err, kind.name, "", rel)
	}

	doc, err := NewDocument(kind, content)
	if err != nil {
		return nil, withContext(err, kind.name, "", clean)
	}

	f := &FileDocument{Document: *doc, path: clean}
	f.file = f
	f.dirty = true

	return f, nil
}

func loadFileDocument(kind *Kind, rel string, data []byte) (*FileDocument, error) {
	doc, err := ParseDocument(kind, data)
	if err != nil {
		return nil, withContext(err, kind.name, "", rel)
	}

	f := &FileDocument{Document: *doc, path: rel, persisted: rel}
	f.file = f

	return f, nil
}

// normalizePath cleans a pack-relative path. Absolute paths and paths
// leaving the pack fail with [ErrPath].
func normalizePath(p string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))

	switch {
	case p == "" || clean == ".":
		return "", fmt.Errorf("%w: empty document path", ErrPath)
	case path.IsAbs(clean) || filepath.IsAbs(p):
		return "", fmt.Errorf("%w: document path %q is absolute", ErrPath, p)
	case clean == ".." || strings.HasPrefix(clean, "../"):
		return "", fmt.Errorf("%w: document path %q leaves the pack", ErrPath, p)
	}

	return clean, nil
}

// Path returns the pack-relative path.
func (f *FileDocument) Path() string {
	return f.path
}

// Pack returns the pack the document is registered to, or nil.
func (f *FileDocument) Pack() *Pack {
	return f.pack
}

// Identity returns the value of the kind's identity field, or the path for
// path-identified kinds.
func (f *FileDocument) Identity() (string, error) {
	id, err := f.identity()

	return id, withContext(err, kindName(f.kind), "", f.path)
}

func (f *FileDocument) identity() (string, error) {
	if !f.kind.hasID {
		return f.path, nil
	}

	v, err := jsonpath.Get(f.value, f.kind.identity)
	if err != nil {
		return "", err
	}

	return identityString(v)
}

// SetPath moves the document. The next save writes the new path and
// removes the previously written file.
func (f *FileDocument) SetPath(rel string) error {
	if err := f.live(); err != nil {
		return f.wrap(err)
	}

	clean, err := normalizePath(rel)
	if err != nil {
		return f.wrap(err)
	}

	if clean == f.path {
		return nil
	}

	if f.pack != nil {
		if err := f.pack.move(f, clean); err != nil {
			return f.wrap(err)
		}
	}

	f.path = clean
	f.markDirty()

	return nil
}

// MarkForDeletion removes the document at its next save.
func (f *FileDocument) MarkForDeletion() error {
	if err := f.live(); err != nil {
		return f.wrap(err)
	}

	f.state = Pending
	f.dirty = true

	return nil
}

// Delete marks the document for deletion and saves it.
func (f *FileDocument) Delete() error {
	if err := f.MarkForDeletion(); err != nil {
		return err
	}

	return f.Save(false)
}

// Save writes the document under the pack's output directory when it is
// dirty or force is set. A document marked for deletion is removed from
// disk and from its pack instead, and becomes Removed. Saving a Removed
// document does nothing.
func (f *FileDocument) Save(force bool) error {
	return f.wrap(f.save(force))
}

func (f *FileDocument) save(force bool) error {
	if f.state == Removed {
		return nil
	}

	p := f.pack
	if p == nil {
		return ErrFloating
	}

	if f.state == Pending {
		return p.remove(f)
	}

	if !f.dirty && !force {
		return nil
	}

	if err := f.applyPending(); err != nil {
		return err
	}

	data, err := f.Bytes()
	if err != nil {
		return err
	}

	out := p.outputPath(f.path)

	err = p.fs.MkdirAll(filepath.Dir(out), dirPerms)
	if err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	err = p.fs.WriteFileAtomic(out, data, filePerms)
	if err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	if f.persisted != "" && f.persisted != f.path {
		err = removeIfExists(p, p.outputPath(f.persisted))
		if err != nil {
			return fmt.Errorf("removing previous file %s: %w", f.persisted, err)
		}
	}

	f.persisted = f.path
	f.clearDirty()

	p.log.Debug("saved document", "kind", f.kind.name, "path", f.path)

	return nil
}

func removeIfExists(p *Pack, abs string) error {
	err := p.fs.Remove(abs)
	if err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}

	return nil
}

// reindex refreshes the pack's identity index for the document.
func (f *FileDocument) reindex() {
	if f.pack != nil {
		f.pack.reindex(f)
	}
}
