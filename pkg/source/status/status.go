// Package status exports errors produced by source providers.
package status

import "github.com/oneconcern/migrator/pkg/errors"

var (
	// ErrNotExists indicates a resource missing from the source repository
	ErrNotExists = errors.New("resource does not exist")

	// ErrNotBinary indicates a content request on a resource which holds no content
	ErrNotBinary = errors.New("resource is not a binary")

	// ErrRead indicates that a resource, its properties or its content could not be read
	ErrRead = errors.New("cannot read source resource")

	// ErrWrite indicates that the source repository could not be updated in place
	ErrWrite = errors.New("cannot update source resource")

	// ErrInvalidExport indicates an export directory which does not follow the expected layout
	ErrInvalidExport = errors.New("invalid export layout")
)
