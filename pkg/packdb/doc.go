// Package packdb maps directories of JSON documents onto a mutable object
// graph driven by a declarative schema.
//
// A [Pack] discovers the files of each kind lazily and indexes them by
// path and identity. Each [FileDocument] owns its value tree; [Region]
// values are views onto schema collections inside it. Mutations mark the
// touched node and every ancestor dirty, and saves write only what
// changed. A [Project] pairs two packs and looks up counterparts by
// identity.
//
// The schema ([Schema], compiled by [Compile]) is interpreted, not
// generated: every kind's collection and property accessors are
// synthesized at compile time and reachable by name through [Call] and
// [Pack.Call].
//
// Nothing in this package is safe for concurrent use.
package packdb
