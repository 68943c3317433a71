// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
)

// PutOpt tells Put what to do when the key already exists
type PutOpt bool

const (
	// OverWrite replaces any existing object under the same key
	OverWrite PutOpt = true
	// NoOverWrite fails with status.ErrExists when the key is already present
	NoOverWrite PutOpt = false
)

// Store implementations know how to write entries to a K/V model.
//
// Typically this is something file system-like. Implementations of this
// interface are assumed to be fairly simple and safe for concurrent use
// on distinct keys.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, PutOpt) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// PipeIO copies a reader to a writer, preferring WriterTo and ReaderFrom when available
func PipeIO(writer io.Writer, reader io.Reader) (int64, error) {
	if wt, ok := reader.(io.WriterTo); ok {
		return wt.WriteTo(writer)
	}
	if rf, ok := writer.(io.ReaderFrom); ok {
		return rf.ReadFrom(reader)
	}
	return io.Copy(writer, reader)
}
