// Package status declares error constants returned by the ocfl package.
package status

import "github.com/oneconcern/migrator/pkg/errors"

var (
	// ErrUnknownDigest indicates an unsupported digest algorithm name
	ErrUnknownDigest = errors.New("unknown digest algorithm")

	// ErrObjectLocked indicates that another writer is updating the same object
	ErrObjectLocked = errors.New("object is locked by another writer")

	// ErrNotFound indicates the object or logical path does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath indicates a logical path which cannot be mapped to a content path
	ErrInvalidPath = errors.New("invalid logical path")

	// ErrCorruptInventory indicates an inventory which cannot be read or does not match its object
	ErrCorruptInventory = errors.New("corrupt inventory")

	// ErrInvalidStorageRoot indicates a storage root which is not an OCFL storage root, or uses another layout
	ErrInvalidStorageRoot = errors.New("invalid OCFL storage root")

	// ErrUpdateClosed indicates that an object update has already been committed or closed
	ErrUpdateClosed = errors.New("object update closed")

	// ErrIO wraps file system errors
	ErrIO = errors.New("ocfl storage I/O error")
)
