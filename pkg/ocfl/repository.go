package ocfl

import (
	"context"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/errors"
	"github.com/oneconcern/migrator/pkg/ocfl/status"
)

// CommitType tells how a commit relates to the existing history of an object
type CommitType string

const (
	// NewVersion always appends a new version
	NewVersion CommitType = "new-version"
)

// Config of a repository
type Config struct {
	DigestAlgorithm DigestAlgorithm
	Layout          Layout
	PathMapper      LogicalPathMapper
}

// Option for a repository
type Option func(*Repository)

// Logger for the repository
func Logger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.l = l
		}
	}
}

// Repository is an OCFL storage root plus a work directory on the same file system
type Repository struct {
	fs          afero.Fs
	storageRoot string
	workDir     string
	cfg         Config
	l           *zap.Logger

	mx     sync.Mutex
	locked map[string]struct{}
}

type layoutDescriptor struct {
	Extension   string `json:"extension"`
	Description string `json:"description"`
}

// New opens or initializes an OCFL storage root.
//
// The storage root and the work directory must live on the same file system, as versions
// are published by renaming them from the work directory.
func New(fs afero.Fs, storageRoot, workDir string, cfg Config, opts ...Option) (*Repository, error) {
	if cfg.DigestAlgorithm.IsZero() {
		cfg.DigestAlgorithm = SHA512
	}
	if cfg.Layout == nil {
		cfg.Layout = NewHashedNTuple()
	}
	if cfg.PathMapper == nil {
		cfg.PathMapper = PercentEncodingLinux()
	}
	r := &Repository{
		fs:          fs,
		storageRoot: storageRoot,
		workDir:     workDir,
		cfg:         cfg,
		l:           zap.NewNop(),
		locked:      make(map[string]struct{}),
	}
	for _, apply := range opts {
		apply(r)
	}
	if err := r.fs.MkdirAll(workDir, 0700); err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	if err := r.initStorageRoot(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) initStorageRoot() error {
	exists, err := afero.Exists(r.fs, path.Join(r.storageRoot, rootNamaste))
	if err != nil {
		return status.ErrIO.Wrap(err)
	}
	if exists {
		return r.checkLayout()
	}

	if err = r.fs.MkdirAll(r.storageRoot, 0700); err != nil {
		return status.ErrIO.Wrap(err)
	}
	empty, err := afero.IsEmpty(r.fs, r.storageRoot)
	if err != nil {
		return status.ErrIO.Wrap(err)
	}
	if !empty {
		return status.ErrInvalidStorageRoot.Wrapf("%q is neither empty nor an OCFL storage root", r.storageRoot)
	}

	layout, err := json.MarshalIndent(layoutDescriptor{
		Extension:   r.cfg.Layout.Extension(),
		Description: "OCFL object identifiers are hashed and split into tuples to form the object root path",
	}, "", "  ")
	if err != nil {
		return err
	}
	extConfig, err := json.MarshalIndent(r.cfg.Layout.Config(), "", "  ")
	if err != nil {
		return err
	}
	for _, file := range []struct {
		name    string
		content []byte
	}{
		{name: path.Join(r.storageRoot, layoutFile), content: layout},
		{name: path.Join(r.storageRoot, extensionsDir, r.cfg.Layout.Extension(), "config.json"), content: extConfig},
		{name: path.Join(r.storageRoot, rootNamaste), content: []byte(rootNamasteBody)},
	} {
		if err = r.fs.MkdirAll(path.Dir(file.name), 0700); err != nil {
			return status.ErrIO.Wrap(err)
		}
		if err = afero.WriteFile(r.fs, file.name, file.content, 0600); err != nil {
			return status.ErrIO.Wrap(err)
		}
	}
	r.l.Info("initialized OCFL storage root",
		zap.String("root", r.storageRoot),
		zap.String("layout", r.cfg.Layout.Extension()),
		zap.String("digest", r.cfg.DigestAlgorithm.Name()))
	return nil
}

func (r *Repository) checkLayout() error {
	data, err := afero.ReadFile(r.fs, path.Join(r.storageRoot, layoutFile))
	if err != nil {
		return status.ErrInvalidStorageRoot.Wrap(err)
	}
	var desc layoutDescriptor
	if err = json.Unmarshal(data, &desc); err != nil {
		return status.ErrInvalidStorageRoot.Wrap(err)
	}
	if desc.Extension != r.cfg.Layout.Extension() {
		return status.ErrInvalidStorageRoot.Wrapf("storage root uses layout %q, configured layout is %q",
			desc.Extension, r.cfg.Layout.Extension())
	}
	return nil
}

// DigestAlgorithm used for new objects
func (r *Repository) DigestAlgorithm() DigestAlgorithm {
	return r.cfg.DigestAlgorithm
}

// PathMapper used to map logical paths to content paths
func (r *Repository) PathMapper() LogicalPathMapper {
	return r.cfg.PathMapper
}

func (r *Repository) objectRoot(objectID string) string {
	return path.Join(r.storageRoot, r.cfg.Layout.ObjectRoot(objectID))
}

// ContainsObject tells if an object has at least one committed version
func (r *Repository) ContainsObject(objectID string) (bool, error) {
	ok, err := afero.Exists(r.fs, path.Join(r.objectRoot(objectID), inventoryFile))
	if err != nil {
		return false, status.ErrIO.Wrap(err)
	}
	return ok, nil
}

func (r *Repository) readInventory(objectID string) (*Inventory, error) {
	data, err := afero.ReadFile(r.fs, path.Join(r.objectRoot(objectID), inventoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound.Wrapf("object %q", objectID)
		}
		return nil, status.ErrIO.Wrap(err)
	}
	return parseInventory(data, objectID)
}

// Describe returns the committed history of an object
func (r *Repository) Describe(objectID string) (ObjectDetails, error) {
	inv, err := r.readInventory(objectID)
	if err != nil {
		return ObjectDetails{}, err
	}
	return inv.details(), nil
}

// GetContent opens the content of a logical path in the head version of an object
func (r *Repository) GetContent(objectID, logicalPath string) (io.ReadCloser, error) {
	inv, err := r.readInventory(objectID)
	if err != nil {
		return nil, err
	}
	digest, ok := inv.headState()[logicalPath]
	if !ok {
		return nil, status.ErrNotFound.Wrapf("logical path %q in object %q", logicalPath, objectID)
	}
	contentPath, ok := inv.contentPathOf(digest)
	if !ok {
		return nil, status.ErrCorruptInventory.Wrapf("digest %s of %q is missing from the manifest", digest, logicalPath)
	}
	f, err := r.fs.Open(path.Join(r.objectRoot(objectID), contentPath))
	if err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	return f, nil
}

// OpenUpdate acquires the single writer lock of an object.
//
// It fails with status.ErrObjectLocked whenever another update of the same object is in progress.
// The returned update must be committed or closed to release the lock.
func (r *Repository) OpenUpdate(objectID string) (*ObjectUpdate, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.locked[objectID]; ok {
		return nil, status.ErrObjectLocked.Wrapf("object %q", objectID)
	}
	r.locked[objectID] = struct{}{}
	return &ObjectUpdate{repo: r, objectID: objectID}, nil
}

func (r *Repository) unlock(objectID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.locked, objectID)
}

// StagedFile is a file to be committed under some logical path
type StagedFile struct {
	LogicalPath string
	Open        func() (io.ReadCloser, error)
}

// ObjectUpdate is an exclusive write access to an object
type ObjectUpdate struct {
	repo     *Repository
	objectID string
	once     sync.Once
	closed   bool
}

// ObjectID being updated
func (u *ObjectUpdate) ObjectID() string {
	return u.objectID
}

// Close releases the object lock without committing. Close is idempotent.
func (u *ObjectUpdate) Close() {
	u.once.Do(func() {
		u.closed = true
		u.repo.unlock(u.objectID)
	})
}

// Commit writes the staged files as a new version of the object, then releases the lock.
//
// The state of the new version is the state of the previous head, overlaid with the staged files.
// Content already present in the object, or staged twice, is stored once.
func (u *ObjectUpdate) Commit(ctx context.Context, info VersionInfo, files []StagedFile, mode CommitType) (VersionID, error) {
	if u.closed {
		return "", status.ErrUpdateClosed.Wrapf("object %q", u.objectID)
	}
	defer u.Close()
	if mode != NewVersion {
		return "", status.ErrIO.Wrapf("unsupported commit type %q", mode)
	}
	return u.repo.commit(ctx, u.objectID, info, files)
}

func (r *Repository) commit(ctx context.Context, objectID string, info VersionInfo, files []StagedFile) (_ VersionID, err error) {
	inv, err := r.readInventory(objectID)
	isNew := false
	switch {
	case err == nil:
	case errors.Is(err, status.ErrNotFound):
		inv = newInventory(objectID, r.cfg.DigestAlgorithm)
		isNew = true
	default:
		return "", err
	}
	alg, err := DigestAlgorithmFromName(inv.DigestAlgorithm)
	if err != nil {
		return "", status.ErrCorruptInventory.Wrap(err)
	}

	version := inv.nextVersion()
	work := path.Join(r.workDir, ksuid.New().String())
	published := false
	defer func() {
		cleanup := r.fs.RemoveAll(work)
		if cleanup == nil {
			return
		}
		if published {
			// the version is visible: leftovers in the work directory do not fail the commit
			r.l.Warn("could not clean up work directory", zap.String("path", work), zap.Error(cleanup))
			return
		}
		err = multierr.Append(err, wrapIO(cleanup))
	}()
	versionDir := path.Join(work, string(version))

	state := inv.headState()
	for _, file := range files {
		if err = ctx.Err(); err != nil {
			return "", err
		}
		var digest string
		digest, err = r.stageContent(alg, inv, version, versionDir, file)
		if err != nil {
			return "", err
		}
		state[file.LogicalPath] = digest
	}

	if info.Created.IsZero() {
		info.Created = time.Now().UTC()
	}
	inv.Head = version
	inv.Versions[version] = &InventoryVersion{
		Created: info.Created.UTC().Truncate(time.Second),
		Message: info.Message,
		User:    &User{Name: info.User.Name, Address: info.User.Address},
		State:   stateFromMap(state),
	}
	data, err := inv.marshal()
	if err != nil {
		return "", err
	}
	sidecar := []byte(alg.Sum(data) + "  " + inventoryFile + "\n")
	sidecarName := inventoryFile + "." + alg.Name()
	if err = writeFiles(r.fs, versionDir, map[string][]byte{inventoryFile: data, sidecarName: sidecar}); err != nil {
		return "", err
	}

	if err = ctx.Err(); err != nil {
		return "", err
	}
	objectRoot := r.objectRoot(objectID)
	if isNew {
		err = r.publishObject(work, objectRoot, data, sidecar, sidecarName)
	} else {
		err = r.publishVersion(versionDir, objectRoot, version, data, sidecar, sidecarName)
	}
	if err != nil {
		return "", err
	}
	published = true
	r.l.Debug("committed object version",
		zap.String("object", objectID),
		zap.String("version", string(version)),
		zap.Int("files", len(files)))
	return version, nil
}

// stageContent copies a staged file into the version content directory, unless its digest is already known
func (r *Repository) stageContent(alg DigestAlgorithm, inv *Inventory, version VersionID, versionDir string, file StagedFile) (string, error) {
	mapped, err := r.cfg.PathMapper.ContentPath(file.LogicalPath)
	if err != nil {
		return "", err
	}
	contentPath := path.Join(string(version), inv.ContentDirectory, mapped)
	target := path.Join(path.Dir(versionDir), contentPath)
	if err = r.fs.MkdirAll(path.Dir(target), 0700); err != nil {
		return "", status.ErrIO.Wrap(err)
	}

	src, err := file.Open()
	if err != nil {
		return "", status.ErrIO.Wrapf("opening staged %q: %v", file.LogicalPath, err)
	}
	defer src.Close()
	dst, err := r.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", status.ErrIO.Wrap(err)
	}
	dw := alg.NewDigestWriter(dst)
	if _, err = io.Copy(dw, src); err != nil {
		_ = dst.Close()
		return "", status.ErrIO.Wrapf("copying %q: %v", file.LogicalPath, err)
	}
	if err = dst.Close(); err != nil {
		return "", status.ErrIO.Wrap(err)
	}

	digest := dw.Digest()
	if _, known := inv.Manifest[digest]; known {
		return digest, wrapIO(r.fs.Remove(target))
	}
	inv.Manifest[digest] = []string{contentPath}
	return digest, nil
}

// publishObject moves a freshly assembled object into the storage root
func (r *Repository) publishObject(work, objectRoot string, inventory, sidecar []byte, sidecarName string) error {
	if err := writeFiles(r.fs, work, map[string][]byte{
		objectNamaste: []byte(objectNamasteBody),
		inventoryFile: inventory,
		sidecarName:   sidecar,
	}); err != nil {
		return err
	}
	if err := r.fs.MkdirAll(path.Dir(objectRoot), 0700); err != nil {
		return status.ErrIO.Wrap(err)
	}
	exists, err := afero.Exists(r.fs, objectRoot)
	if err != nil {
		return status.ErrIO.Wrap(err)
	}
	if exists {
		// leftover from an interrupted first commit: never referenced by a root inventory
		if err = r.fs.RemoveAll(objectRoot); err != nil {
			return status.ErrIO.Wrap(err)
		}
	}
	return wrapIO(r.fs.Rename(work, objectRoot))
}

// publishVersion moves a version directory into an existing object, then switches the root inventory
func (r *Repository) publishVersion(versionDir, objectRoot string, version VersionID, inventory, sidecar []byte, sidecarName string) error {
	target := path.Join(objectRoot, string(version))
	exists, err := afero.Exists(r.fs, target)
	if err != nil {
		return status.ErrIO.Wrap(err)
	}
	if exists {
		// leftover from an interrupted commit: not referenced by the root inventory
		r.l.Warn("removing orphaned version directory", zap.String("path", target))
		if err = r.fs.RemoveAll(target); err != nil {
			return status.ErrIO.Wrap(err)
		}
	}
	if err = r.fs.Rename(versionDir, target); err != nil {
		return status.ErrIO.Wrap(err)
	}

	// both root files are staged first, so that only renames remain once the inventory is switched.
	// The new version becomes visible when the root inventory is replaced.
	prefix := path.Join(r.workDir, ksuid.New().String()+"-")
	tmpInventory, tmpSidecar := prefix+inventoryFile, prefix+sidecarName
	if err = writeStaged(r.fs, map[string][]byte{tmpInventory: inventory, tmpSidecar: sidecar}); err != nil {
		return err
	}
	if err = r.fs.Rename(tmpInventory, path.Join(objectRoot, inventoryFile)); err != nil {
		_ = r.fs.Remove(tmpInventory)
		_ = r.fs.Remove(tmpSidecar)
		return status.ErrIO.Wrap(err)
	}
	if err = r.fs.Rename(tmpSidecar, path.Join(objectRoot, sidecarName)); err != nil {
		_ = r.fs.Remove(tmpSidecar)
		return status.ErrIO.Wrap(err)
	}
	return nil
}

func writeStaged(fs afero.Fs, files map[string][]byte) error {
	for name, content := range files {
		if err := afero.WriteFile(fs, name, content, 0600); err != nil {
			for staged := range files {
				_ = fs.Remove(staged)
			}
			return status.ErrIO.Wrap(err)
		}
	}
	return nil
}

func writeFiles(fs afero.Fs, dir string, files map[string][]byte) error {
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return status.ErrIO.Wrap(err)
	}
	for name, content := range files {
		if err := afero.WriteFile(fs, path.Join(dir, name), content, 0600); err != nil {
			return status.ErrIO.Wrap(err)
		}
	}
	return nil
}

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return status.ErrIO.Wrap(err)
}
