package packdb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/packdb/pkg/jsonpath"
	"github.com/calvinalkan/packdb/pkg/jsonv"
)

// Sentinel errors. Path and codec errors are shared with [jsonpath] and
// [jsonv] so errors.Is works against either package's sentinel.
var (
	// ErrNotFound indicates an absent path, identity or document.
	ErrNotFound = jsonpath.ErrNotFound

	// ErrPath indicates a malformed path or one that cannot be applied.
	ErrPath = jsonpath.ErrPath

	// ErrAmbiguous indicates a single-result operation matched more than once.
	ErrAmbiguous = jsonpath.ErrAmbiguous

	// ErrType indicates a value of the wrong type for the operation.
	ErrType = jsonpath.ErrType

	// ErrInvalidFormat indicates a malformed source document.
	ErrInvalidFormat = jsonv.ErrInvalidFormat

	// ErrSchema indicates a malformed schema. Returned by [Compile].
	ErrSchema = errors.New("schema error")

	// ErrExists indicates a path, key or identity that is already taken.
	ErrExists = errors.New("already exists")

	// ErrRemoved indicates an operation on a removed document or region.
	ErrRemoved = errors.New("resource removed")

	// ErrFloating indicates a document that is not registered to a pack.
	ErrFloating = errors.New("document not registered to a pack")
)

// Error is the error type returned by packdb APIs that act on a document
// or region.
//
// The cause comes first, followed by the resource context:
//
//	invalid format: line 3: unexpected '}' (kind=entity path=entities/cow.json)
//
// Use [errors.As] to get at the fields and [errors.Is] to test for the
// sentinels above.
type Error struct {
	// Kind is the schema kind name of the resource.
	Kind string

	// ID is the resource identity, or the requested identity for failed
	// lookups.
	ID string

	// Path is the pack-relative path of the document.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (kind=K id=I path=P)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	suffix := e.suffix()

	switch {
	case suffix == "":
		return cause
	case cause == "":
		return suffix
	default:
		return cause + " " + suffix
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) suffix() string {
	var parts []string

	if e.Kind != "" {
		parts = append(parts, "kind="+e.Kind)
	}

	if e.ID != "" {
		parts = append(parts, "id="+e.ID)
	}

	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	if len(parts) == 0 {
		return ""
	}

	return "(" + strings.Join(parts, " ") + ")"
}

// withContext attaches resource context at API boundaries and returns *Error.
// If err already is an *Error, a copy with the missing fields filled in is
// returned; err itself is never modified.
func withContext(err error, kind, id, path string) error {
	if err == nil {
		return nil
	}

	existing := &Error{}
	if errors.As(err, &existing) {
		filled := *existing

		if filled.Kind == "" {
			filled.Kind = kind
		}

		if filled.ID == "" {
			filled.ID = id
		}

		if filled.Path == "" {
			filled.Path = path
		}

		return &filled
	}

	return &Error{Kind: kind, ID: id, Path: path, Err: err}
}

// BatchError collects per-document failures of a bulk operation
// ([Pack.Save], [Pack.Documents]). The batch is never aborted; every
// failure is kept.
type BatchError struct {
	// Op names the bulk operation ("save", "discover").
	Op string

	// Errs holds one error per failed document, usually an *[Error].
	Errs []error
}

// Error lists every failure on one line each.
func (e *BatchError) Error() string {
	if e == nil || len(e.Errs) == 0 {
		return ""
	}

	var b strings.Builder

	noun := "documents"
	if len(e.Errs) == 1 {
		noun = "document"
	}

	fmt.Fprintf(&b, "%s: %d %s failed", e.Op, len(e.Errs), noun)

	for _, err := range e.Errs {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}

	return b.String()
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	if e == nil {
		return nil
	}

	return e.Errs
}

// add records a failure. nil errors are ignored.
func (e *BatchError) add(err error) {
	if err != nil {
		e.Errs = append(e.Errs, err)
	}
}

// err returns e, or nil when nothing failed.
func (e *BatchError) err() error {
	if len(e.Errs) == 0 {
		return nil
	}

	return e
}

// joinBatches merges bulk errors of the same operation into one BatchError.
func joinBatches(op string, errs ...error) error {
	out := &BatchError{Op: op}

	for _, err := range errs {
		if err == nil {
			continue
		}

		var batch *BatchError
		if errors.As(err, &batch) {
			out.Errs = append(out.Errs, batch.Errs...)

			continue
		}

		out.add(err)
	}

	return out.err()
}
