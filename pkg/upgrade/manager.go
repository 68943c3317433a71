// Package upgrade drives the upgrade of a repository from one version to the next.
//
// Each supported pair of versions maps to a strategy, assembled by Create with all its
// dependencies. Unsupported pairs are rejected before anything is set up.
package upgrade

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/metrics"
	"github.com/oneconcern/migrator/pkg/migrate"
	"github.com/oneconcern/migrator/pkg/source"
	"github.com/oneconcern/migrator/pkg/source/export"
	"github.com/oneconcern/migrator/pkg/session"
	"github.com/oneconcern/migrator/pkg/upgrade/status"
)

// Manager runs an upgrade to completion
type Manager interface {
	Run(context.Context) (Result, error)
	Path() Path
}

// Result of an upgrade run
type Result struct {
	Path      Path
	Aggregate migrate.AggregateResult
	Elapsed   time.Duration
}

// Summary is a one line, human readable account of the run
func (r Result) Summary() string {
	a := r.Aggregate
	return fmt.Sprintf("%v: %d succeeded, %d failed, %d dropped, %s written in %v",
		r.Path, a.Succeeded, a.Failed, a.Dropped, units.HumanSize(float64(a.Bytes)), r.Elapsed.Round(time.Millisecond))
}

// Dependencies injected into the upgrade strategies. Zero values are replaced by defaults.
type Dependencies struct {
	// Fs hosts the source export and the output directory. Defaults to the OS file system.
	Fs afero.Fs

	// Source repository. Defaults to the export found in the configured source directory.
	Source source.Provider

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// SessionOptions are passed to the storage session factory
	SessionOptions []session.Option
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Create assembles the upgrade manager for the configured versions.
//
// The version pair is checked first, then the configuration: on failure, no directory is created,
// no source is opened and no worker is started.
func Create(cfg Config, deps Dependencies) (Manager, error) {
	path, err := Lookup(cfg.SourceVersion, cfg.TargetVersion)
	if err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err = cfg.Validate(path, deps.Source != nil); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	l := deps.Logger.With(zap.Stringer("path", path))

	switch path {
	case F47ToF5:
		return newF47ToF5(cfg, deps, l)
	case F5ToF6:
		return newF5ToF6(cfg, deps, l)
	default:
		return nil, status.ErrUnsupportedPath.Wrapf("no strategy for %v", path)
	}
}

func openSource(cfg Config, deps Dependencies, l *zap.Logger) (source.Provider, error) {
	if deps.Source != nil {
		return deps.Source, nil
	}
	p, err := export.Open(deps.Fs, cfg.SourceDir, export.Logger(l))
	if err != nil {
		return nil, status.ErrConfiguration.Wrap(err)
	}
	return p, nil
}
