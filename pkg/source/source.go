// Package source defines read and update access to a legacy repository.
package source

import (
	"context"
	"io"

	"github.com/oneconcern/migrator/pkg/model"
)

// Provider gives read-only access to the resource tree of a legacy repository.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Root resource of the repository
	Root(context.Context) (model.Resource, error)

	// Children of a container, in no particular order. A binary has no children.
	Children(context.Context, model.Resource) ([]model.Resource, error)

	// Properties of a resource, as recorded by the legacy repository
	Properties(context.Context, model.Resource) (model.Properties, error)

	// Content stream of a binary
	Content(context.Context, model.Resource) (io.ReadCloser, error)
}

// Mutator updates resource properties in place.
//
// Only in-place upgrade strategies use a mutator.
type Mutator interface {
	SetProperty(ctx context.Context, resource model.Resource, name, value string) error
	RemoveProperty(ctx context.Context, resource model.Resource, name string) error
}

// ProviderMutator is a provider which supports in-place updates
type ProviderMutator interface {
	Provider
	Mutator
}
