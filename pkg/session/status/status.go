// Package status exports errors produced by the session package.
package status

import "github.com/oneconcern/migrator/pkg/errors"

var (
	// ErrConfiguration indicates an invalid storage configuration: output root, digest algorithm
	ErrConfiguration = errors.New("invalid storage configuration")

	// ErrIO indicates that the storage directories could not be prepared
	ErrIO = errors.New("storage I/O error")

	// ErrSessionClosed indicates a write or commit attempted on a session already committed or aborted
	ErrSessionClosed = errors.New("session is closed")

	// ErrCommit indicates that the storage engine rejected a write or a commit
	ErrCommit = errors.New("storage commit failed")
)
