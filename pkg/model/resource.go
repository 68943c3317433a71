package model

import (
	"path"
	"strings"
)

// ResourceType tells containers from binaries
type ResourceType string

const (
	// Container resources hold children and descriptive metadata only
	Container ResourceType = "container"

	// Binary resources hold content and technical metadata
	Binary ResourceType = "binary"
)

// RootID is the identifier of the repository root
const RootID = "/"

// Resource is a node in the legacy repository tree.
//
// Parent is a back reference used for traversal only.
type Resource struct {
	ID       string       `json:"id" yaml:"id"`
	Type     ResourceType `json:"type" yaml:"type"`
	Parent   string       `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children []string     `json:"children,omitempty" yaml:"children,omitempty"`
	_        struct{}
}

// IsBinary tells if this resource carries content
func (r Resource) IsBinary() bool {
	return r.Type == Binary
}

// IsRoot tells if this resource is the repository root
func (r Resource) IsRoot() bool {
	return CleanResourceID(r.ID) == RootID
}

// Name is the last segment of the resource path
func (r Resource) Name() string {
	id := CleanResourceID(r.ID)
	if id == RootID {
		return ""
	}
	return path.Base(id)
}

// CleanResourceID normalizes a resource path: always absolute, no duplicate or trailing slashes
func CleanResourceID(id string) string {
	if id == "" {
		return RootID
	}
	return path.Clean("/" + strings.TrimSpace(id))
}

// ParentID returns the cleaned identifier of the parent of a resource, or an empty string for the root
func ParentID(id string) string {
	id = CleanResourceID(id)
	if id == RootID {
		return ""
	}
	return path.Dir(id)
}
