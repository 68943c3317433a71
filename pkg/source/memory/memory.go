// Package memory implements an in-memory legacy repository.
//
// The tree is assembled with a builder API, and faults may be injected to exercise failure paths.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/source"
	"github.com/oneconcern/migrator/pkg/source/status"
)

var _ source.ProviderMutator = &Provider{}

type node struct {
	resource   model.Resource
	properties model.Properties
	content    []byte
}

// Provider is an in-memory resource tree
type Provider struct {
	mu          sync.RWMutex
	nodes       map[string]*node
	failContent map[string]error
	failProps   map[string]error
	failList    map[string]error
	extra       map[string][]string
}

// New builds a tree with a root container only
func New() *Provider {
	p := &Provider{
		nodes:       make(map[string]*node),
		failContent: make(map[string]error),
		failProps:   make(map[string]error),
		failList:    make(map[string]error),
		extra:       make(map[string][]string),
	}
	p.nodes[model.RootID] = &node{
		resource:   model.Resource{ID: model.RootID, Type: model.Container},
		properties: make(model.Properties),
	}
	return p
}

// AddContainer adds a container. Missing ancestors are created as empty containers.
func (p *Provider) AddContainer(id string, props model.Properties) *Provider {
	p.add(id, model.Container, props, nil)
	return p
}

// AddBinary adds a binary with some content. Missing ancestors are created as empty containers.
func (p *Provider) AddBinary(id string, content []byte, props model.Properties) *Provider {
	p.add(id, model.Binary, props, content)
	return p
}

// FailContent makes reading the content of a binary fail with err, after some content has been delivered
func (p *Provider) FailContent(id string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failContent[model.CleanResourceID(id)] = err
	return p
}

// FailProperties makes reading the properties of a resource fail with err
func (p *Provider) FailProperties(id string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failProps[model.CleanResourceID(id)] = err
	return p
}

// FailChildren makes listing the children of a container fail with err
func (p *Provider) FailChildren(id string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failList[model.CleanResourceID(id)] = err
	return p
}

// ListTwice makes a container report an existing resource once more among its children
func (p *Provider) ListTwice(parent, child string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	parent = model.CleanResourceID(parent)
	p.extra[parent] = append(p.extra[parent], model.CleanResourceID(child))
	return p
}

// Len is the number of resources in the tree, root included
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}

func (p *Provider) add(id string, typ model.ResourceType, props model.Properties, content []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id = model.CleanResourceID(id)
	if existing, ok := p.nodes[id]; ok {
		existing.resource.Type = typ
		existing.properties = props.Clone()
		existing.content = append([]byte(nil), content...)
		return
	}
	p.ensureParent(id)
	p.nodes[id] = &node{
		resource:   model.Resource{ID: id, Type: typ, Parent: model.ParentID(id)},
		properties: props.Clone(),
		content:    append([]byte(nil), content...),
	}
	parent := p.nodes[model.ParentID(id)]
	parent.resource.Children = append(parent.resource.Children, id)
}

func (p *Provider) ensureParent(id string) {
	parentID := model.ParentID(id)
	if _, ok := p.nodes[parentID]; ok {
		return
	}
	p.ensureParent(parentID)
	p.nodes[parentID] = &node{
		resource:   model.Resource{ID: parentID, Type: model.Container, Parent: model.ParentID(parentID)},
		properties: make(model.Properties),
	}
	grandParent := p.nodes[model.ParentID(parentID)]
	grandParent.resource.Children = append(grandParent.resource.Children, parentID)
}

func (p *Provider) get(id string) (*node, error) {
	n, ok := p.nodes[model.CleanResourceID(id)]
	if !ok {
		return nil, status.ErrNotExists.Wrapf("resource %q", id)
	}
	return n, nil
}

func snapshot(r model.Resource) model.Resource {
	r.Children = append([]string(nil), r.Children...)
	return r
}

// Root resource
func (p *Provider) Root(_ context.Context) (model.Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return snapshot(p.nodes[model.RootID].resource), nil
}

// Children of a resource, in insertion order
func (p *Provider) Children(_ context.Context, r model.Resource) ([]model.Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, err := p.get(r.ID)
	if err != nil {
		return nil, err
	}
	if err, ok := p.failList[n.resource.ID]; ok {
		return nil, status.ErrRead.Wrap(err)
	}
	ids := append(append([]string(nil), n.resource.Children...), p.extra[n.resource.ID]...)
	children := make([]model.Resource, 0, len(ids))
	for _, id := range ids {
		child, err := p.get(id)
		if err != nil {
			return nil, err
		}
		children = append(children, snapshot(child.resource))
	}
	return children, nil
}

// Properties of a resource
func (p *Provider) Properties(_ context.Context, r model.Resource) (model.Properties, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, err := p.get(r.ID)
	if err != nil {
		return nil, err
	}
	if err, ok := p.failProps[n.resource.ID]; ok {
		return nil, status.ErrRead.Wrap(err)
	}
	return n.properties.Clone(), nil
}

// Content of a binary
func (p *Provider) Content(_ context.Context, r model.Resource) (io.ReadCloser, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, err := p.get(r.ID)
	if err != nil {
		return nil, err
	}
	if !n.resource.IsBinary() {
		return nil, status.ErrNotBinary.Wrapf("resource %q", r.ID)
	}
	rdr := io.Reader(bytes.NewReader(n.content))
	if err, ok := p.failContent[n.resource.ID]; ok {
		half := n.content[:len(n.content)/2]
		rdr = io.MultiReader(bytes.NewReader(half), &failingReader{err: status.ErrRead.Wrap(err)})
	}
	return io.NopCloser(rdr), nil
}

// SetProperty sets a property on a resource
func (p *Provider) SetProperty(_ context.Context, r model.Resource, name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.get(r.ID)
	if err != nil {
		return err
	}
	n.properties[name] = value
	return nil
}

// RemoveProperty removes a property from a resource
func (p *Provider) RemoveProperty(_ context.Context, r model.Resource, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.get(r.ID)
	if err != nil {
		return err
	}
	delete(n.properties, name)
	return nil
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}
