// Copyright © 2018 One Concern

// Package export reads a legacy repository exported to a directory tree.
//
// Directories are containers and regular files are binaries. Properties are kept in YAML
// sidecar files: `.container.yaml` inside a container directory, `<name>.fcrepo.yaml` next to
// a binary.
package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
	lru "github.com/hashicorp/golang-lru"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/source"
	"github.com/oneconcern/migrator/pkg/source/status"
)

// Sidecar file names
const (
	ContainerSidecar = ".container.yaml"
	BinarySuffix     = ".fcrepo.yaml"

	// DefaultCacheSize is the number of parsed sidecars kept in memory
	DefaultCacheSize = 1024
)

var _ source.ProviderMutator = &Provider{}

type entry struct {
	resource model.Resource
	file     string
	sidecar  string
}

// Option for the export provider
type Option func(*Provider)

// Logger for the export provider
func Logger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.l = l
		}
	}
}

// CacheSize sets the number of parsed sidecars kept in memory
func CacheSize(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.cacheSize = n
		}
	}
}

// Provider reads resources from an export directory.
//
// The tree is indexed once when opened: resources added to the export afterwards are not visible.
type Provider struct {
	fs    afero.Fs
	root  string
	index *iradix.Tree
	l     *zap.Logger

	mu        sync.Mutex // guards sidecar files and the cache
	cacheSize int
	props     *lru.Cache
}

// Open indexes an export directory
func Open(fs afero.Fs, root string, opts ...Option) (*Provider, error) {
	p := &Provider{
		fs:        fs,
		root:      filepath.Clean(root),
		l:         zap.NewNop(),
		cacheSize: DefaultCacheSize,
	}
	for _, apply := range opts {
		apply(p)
	}
	var err error
	if p.props, err = lru.New(p.cacheSize); err != nil {
		return nil, err
	}

	fi, err := fs.Stat(p.root)
	if err != nil {
		return nil, status.ErrInvalidExport.Wrapf("export root %q: %v", root, err)
	}
	if !fi.IsDir() {
		return nil, status.ErrInvalidExport.Wrapf("export root %q is not a directory", root)
	}

	if err = p.buildIndex(); err != nil {
		return nil, err
	}
	p.l.Info("indexed export", zap.String("root", p.root), zap.Int("resources", p.index.Len()))
	return p, nil
}

func (p *Provider) buildIndex() error {
	txn := iradix.New().Txn()
	err := afero.Walk(p.fs, p.root, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(p.root, file)
		if err != nil {
			return err
		}
		id := model.CleanResourceID(filepath.ToSlash(rel))
		switch {
		case info.IsDir():
			txn.Insert([]byte(id), &entry{
				resource: model.Resource{ID: id, Type: model.Container, Parent: model.ParentID(id)},
				file:     file,
				sidecar:  filepath.Join(file, ContainerSidecar),
			})
		case isSidecar(info.Name()):
		case info.Mode().IsRegular():
			txn.Insert([]byte(id), &entry{
				resource: model.Resource{ID: id, Type: model.Binary, Parent: model.ParentID(id)},
				file:     file,
				sidecar:  file + BinarySuffix,
			})
		default:
			p.l.Warn("skipping unsupported export entry", zap.String("path", file), zap.Stringer("mode", info.Mode()))
		}
		return nil
	})
	if err != nil {
		return status.ErrInvalidExport.Wrap(err)
	}
	tree := txn.Commit()

	// children are direct descendants under the resource prefix
	tree.Root().Walk(func(_ []byte, v interface{}) bool {
		e := v.(*entry)
		if e.resource.IsBinary() {
			return false
		}
		prefix := e.resource.ID + "/"
		if e.resource.IsRoot() {
			prefix = model.RootID
		}
		tree.Root().WalkPrefix([]byte(prefix), func(ck []byte, _ interface{}) bool {
			child := string(ck)
			if child != e.resource.ID && model.ParentID(child) == e.resource.ID {
				e.resource.Children = append(e.resource.Children, child)
			}
			return false
		})
		return false
	})
	p.index = tree
	return nil
}

func isSidecar(name string) bool {
	return name == ContainerSidecar || strings.HasSuffix(name, BinarySuffix)
}

func (p *Provider) get(id string) (*entry, error) {
	v, ok := p.index.Get([]byte(model.CleanResourceID(id)))
	if !ok {
		return nil, status.ErrNotExists.Wrapf("resource %q", id)
	}
	return v.(*entry), nil
}

func snapshot(r model.Resource) model.Resource {
	r.Children = append([]string(nil), r.Children...)
	return r
}

// Len is the number of indexed resources, root included
func (p *Provider) Len() int {
	return p.index.Len()
}

// Root resource
func (p *Provider) Root(_ context.Context) (model.Resource, error) {
	e, err := p.get(model.RootID)
	if err != nil {
		return model.Resource{}, err
	}
	return snapshot(e.resource), nil
}

// Children of a container, sorted by identifier
func (p *Provider) Children(_ context.Context, r model.Resource) ([]model.Resource, error) {
	e, err := p.get(r.ID)
	if err != nil {
		return nil, err
	}
	children := make([]model.Resource, 0, len(e.resource.Children))
	for _, id := range e.resource.Children {
		child, err := p.get(id)
		if err != nil {
			return nil, err
		}
		children = append(children, snapshot(child.resource))
	}
	return children, nil
}

// Properties of a resource, read from its sidecar file. A resource without a sidecar has no properties.
func (p *Provider) Properties(_ context.Context, r model.Resource) (model.Properties, error) {
	e, err := p.get(r.ID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	props, err := p.readSidecar(e)
	if err != nil {
		return nil, err
	}
	return copyProperties(props), nil
}

func copyProperties(props model.Properties) model.Properties {
	c := make(model.Properties, len(props))
	for k, v := range props {
		c[k] = v
	}
	return c
}

func (p *Provider) readSidecar(e *entry) (model.Properties, error) {
	if v, ok := p.props.Get(e.resource.ID); ok {
		return v.(model.Properties), nil
	}

	data, err := afero.ReadFile(p.fs, e.sidecar)
	if os.IsNotExist(err) {
		return make(model.Properties), nil
	}
	if err != nil {
		return nil, status.ErrRead.Wrapf("properties of %q: %v", e.resource.ID, err)
	}
	props := make(model.Properties)
	if err = yaml.Unmarshal(data, &props); err != nil {
		return nil, status.ErrRead.Wrapf("properties of %q: %v", e.resource.ID, err)
	}
	p.props.Add(e.resource.ID, props)
	return props, nil
}

// Content of a binary
func (p *Provider) Content(_ context.Context, r model.Resource) (io.ReadCloser, error) {
	e, err := p.get(r.ID)
	if err != nil {
		return nil, err
	}
	if !e.resource.IsBinary() {
		return nil, status.ErrNotBinary.Wrapf("resource %q", r.ID)
	}
	f, err := p.fs.Open(e.file)
	if err != nil {
		return nil, status.ErrRead.Wrapf("content of %q: %v", r.ID, err)
	}
	return f, nil
}

// SetProperty sets a property and rewrites the sidecar file
func (p *Provider) SetProperty(_ context.Context, r model.Resource, name, value string) error {
	return p.update(r, func(props model.Properties) {
		props[name] = value
	})
}

// RemoveProperty removes a property and rewrites the sidecar file
func (p *Provider) RemoveProperty(_ context.Context, r model.Resource, name string) error {
	return p.update(r, func(props model.Properties) {
		delete(props, name)
	})
}

func (p *Provider) update(r model.Resource, mutate func(model.Properties)) error {
	e, err := p.get(r.ID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cached, err := p.readSidecar(e)
	if err != nil {
		return err
	}
	props := copyProperties(cached)
	mutate(props)
	data, err := yaml.Marshal(props)
	if err != nil {
		return status.ErrWrite.Wrap(err)
	}

	tmp := filepath.Join(filepath.Dir(e.sidecar), "."+ksuid.New().String()+".tmp")
	if err = afero.WriteFile(p.fs, tmp, data, 0600); err != nil {
		return status.ErrWrite.Wrapf("properties of %q: %v", r.ID, err)
	}
	if err = p.fs.Rename(tmp, e.sidecar); err != nil {
		_ = p.fs.Remove(tmp)
		return status.ErrWrite.Wrapf("properties of %q: %v", r.ID, err)
	}
	p.props.Add(e.resource.ID, props)
	return nil
}
