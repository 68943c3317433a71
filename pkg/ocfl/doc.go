// Package ocfl implements a minimal OCFL 1.0 (Oxford Common File Layout) storage
// engine on top of an afero file system.
//
// Objects are append-only sequences of immutable versions. Each version records a
// state (logical path to content digest) and content is stored once per digest.
//
// A version is assembled in a work directory and published by renaming it into the
// object root, then replacing the root inventory. Readers only ever see versions
// referenced by the root inventory, so a crash mid-commit never exposes a partial version.
//
// A single writer per object is enforced with in-process object locks (see Repository.OpenUpdate).
package ocfl
