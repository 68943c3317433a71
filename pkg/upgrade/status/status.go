// Package status exports errors produced by the upgrade package.
package status

import "github.com/oneconcern/migrator/pkg/errors"

var (
	// ErrUnsupportedPath indicates a pair of repository versions with no registered upgrade strategy
	ErrUnsupportedPath = errors.New("unsupported upgrade path")

	// ErrConfiguration indicates an invalid upgrade configuration
	ErrConfiguration = errors.New("invalid upgrade configuration")
)
