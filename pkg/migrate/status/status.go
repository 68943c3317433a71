// Package status exports errors produced by the migrate package.
package status

import "github.com/oneconcern/migrator/pkg/errors"

var (
	// ErrSourceRead indicates a resource, its properties or its content could not be read from the source
	ErrSourceRead = errors.New("source read error")

	// ErrCommit indicates the target storage rejected a write or a commit
	ErrCommit = errors.New("commit error")

	// ErrScheduling indicates the task manager cannot accept more tasks
	ErrScheduling = errors.New("scheduling error")

	// ErrInterrupted indicates a run cancelled before all tasks could run
	ErrInterrupted = errors.New("migration interrupted")

	// ErrPanic indicates a task which panicked
	ErrPanic = errors.New("migration task panicked")
)
