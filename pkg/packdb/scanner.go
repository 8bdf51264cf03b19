package packdb

import (
	"errors"
	iofs "io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calvinalkan/packdb/internal/fs"
)

// Rule tells discovery where the files of a kind live.
type Rule struct {
	// Folder is the pack-relative folder, searched recursively.
	Folder string `json:"folder"`

	// Extension is the file name suffix, ".json" by default.
	Extension string `json:"extension,omitempty"`
}

// Scanner lists the candidate files of a rule: pack-relative,
// slash-separated paths in a deterministic order.
type Scanner interface {
	Scan(root string, rule Rule) ([]string, error)
}

// WalkScanner walks the rule's folder through an [fs.FS] and returns the
// matching files sorted lexically. Entries starting with "." are skipped.
// A missing folder has no files.
type WalkScanner struct {
	FS fs.FS
}

// Scan implements [Scanner].
func (w WalkScanner) Scan(root string, rule Rule) ([]string, error) {
	var out []string

	err := w.walk(root, rule.Folder, rule.Extension, &out)
	if err != nil {
		return nil, err
	}

	sort.Strings(out)

	return out, nil
}

func (w WalkScanner) walk(root, rel, ext string, out *[]string) error {
	entries, err := w.FS.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}

		return err
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		child := path.Join(rel, name)

		if e.IsDir() {
			if err := w.walk(root, child, ext, out); err != nil {
				return err
			}

			continue
		}

		if strings.HasSuffix(name, ext) {
			*out = append(*out, child)
		}
	}

	return nil
}
