// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - local file system, with an atomic variant staging writes before renaming them into place
//
// The migrator uses it as the staging area for in-flight content and to
// publish inventory files of the versioned object store.
package storage
