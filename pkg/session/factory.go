package session

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/metrics"
	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/ocfl"
	"github.com/oneconcern/migrator/pkg/session/status"
	"github.com/oneconcern/migrator/pkg/storage"
	"github.com/oneconcern/migrator/pkg/storage/localfs"
)

// Directories created under the output root
const (
	OCFLRootDir = "ocfl-root"
	WorkDir     = "ocfl-temp"
	StagingDir  = "staging"
)

// DefaultCommitMessage is recorded on every version committed by the migration
const DefaultCommitMessage = "Generated by Fedora 4/5 to Fedora 6 migration"

// Option for the session factory
type Option func(*Factory)

// Logger for the factory and its sessions
func Logger(l *zap.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.l = l
		}
	}
}

// WithMetrics tracks open sessions
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Factory) {
		f.metrics = m
	}
}

// WithGOOS overrides the host operating system used to select the logical path mapper
func WithGOOS(goos string) Option {
	return func(f *Factory) {
		f.goos = goos
	}
}

// CommitMessage overrides the message recorded on committed versions
func CommitMessage(msg string) Option {
	return func(f *Factory) {
		if msg != "" {
			f.message = msg
		}
	}
}

// Factory owns access to the target OCFL storage and hands out per-object sessions.
//
// A factory is read-only after Configure and safe for concurrent use.
type Factory struct {
	fs         afero.Fs
	outputRoot string
	repo       *ocfl.Repository
	staging    storage.Store
	user       model.Contributor
	message    string
	goos       string
	l          *zap.Logger
	metrics    *metrics.Metrics
}

// Configure validates the storage configuration, prepares the output directory layout and opens
// the OCFL repository.
//
// The digest algorithm is checked before any directory is created. The output root receives three
// directories: the OCFL storage root, a work directory used to assemble versions and a staging area
// for in-flight content. Existing directories are reused, so that a new run resumes on a previous output.
func Configure(fs afero.Fs, outputRoot, digestAlgorithm string, user model.Contributor, opts ...Option) (*Factory, error) {
	if outputRoot == "" {
		return nil, status.ErrConfiguration.Wrapf("an output directory is required")
	}
	alg, err := ocfl.DigestAlgorithmFromName(digestAlgorithm)
	if err != nil {
		return nil, status.ErrConfiguration.Wrap(err)
	}
	if user.Name == "" {
		return nil, status.ErrConfiguration.Wrapf("a service identity is required to author commits")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f := &Factory{
		fs:         fs,
		outputRoot: outputRoot,
		user:       user,
		message:    DefaultCommitMessage,
		goos:       runtime.GOOS,
		l:          zap.NewNop(),
	}
	for _, apply := range opts {
		apply(f)
	}

	if fi, err := fs.Stat(outputRoot); err == nil && !fi.IsDir() {
		return nil, status.ErrConfiguration.Wrapf("output root %q is not a directory", outputRoot)
	} else if err != nil && !os.IsNotExist(err) {
		return nil, status.ErrConfiguration.Wrapf("output root %q is not readable: %v", outputRoot, err)
	}

	ocflRoot := filepath.Join(outputRoot, OCFLRootDir)
	work := filepath.Join(outputRoot, WorkDir)
	staging := filepath.Join(outputRoot, StagingDir)
	for _, dir := range []string{ocflRoot, work, staging} {
		if err = fs.MkdirAll(dir, 0700); err != nil {
			return nil, status.ErrIO.Wrapf("creating %q: %v", dir, err)
		}
	}

	store, err := localfs.NewAtomic(afero.NewBasePathFs(fs, staging))
	if err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	f.staging = storage.Instrument(f.l, store)

	mapper := ocfl.MapperForOS(f.goos)
	f.repo, err = ocfl.New(fs, ocflRoot, work, ocfl.Config{
		DigestAlgorithm: alg,
		Layout:          ocfl.NewHashedNTuple(),
		PathMapper:      mapper,
	}, ocfl.Logger(f.l))
	if err != nil {
		return nil, status.ErrConfiguration.Wrap(err)
	}

	f.l.Info("storage configured",
		zap.String("output", outputRoot),
		zap.String("digest", alg.Name()),
		zap.String("pathMapper", mapper.Name()),
		zap.String("user", f.user.String()))
	return f, nil
}

// Repository exposes the underlying OCFL repository, e.g. to inspect committed objects
func (f *Factory) Repository() *ocfl.Repository {
	return f.repo
}

// DigestAlgorithm used to address content
func (f *Factory) DigestAlgorithm() ocfl.DigestAlgorithm {
	return f.repo.DigestAlgorithm()
}

// User recorded as the author of all commits
func (f *Factory) User() model.Contributor {
	return f.user
}

// NewSession opens a write session on one object.
//
// Sessions are exclusive: opening a second session on an object with an open session fails
// with the storage engine's lock error.
func (f *Factory) NewSession(ctx context.Context, objectID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	update, err := f.repo.OpenUpdate(objectID)
	if err != nil {
		return nil, status.ErrCommit.Wrap(err)
	}
	f.metrics.SessionOpened()
	s := &Session{
		f:       f,
		update:  update,
		prefix:  ksuid.New().String(),
		entries: make(map[string]string),
		l:       f.l.With(zap.String("object", objectID)),
	}
	return s, nil
}
