package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/ocfl"
	"github.com/oneconcern/migrator/pkg/session/status"
	"github.com/oneconcern/migrator/pkg/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// HeadersPath is the logical path of the resource headers in every object
	HeadersPath = ".fcrepo/fcr-root.json"

	// DescriptionSuffix is appended to a resource name to form its description file
	DescriptionSuffix = "~fcr-desc.nt"
)

// Written describes content staged in a session
type Written struct {
	LogicalPath string
	Digest      string
	Size        int64
}

// Session is a write session on a single object.
//
// Content is staged until Commit, which produces exactly one new version. A session must not be
// shared by concurrent goroutines.
type Session struct {
	f       *Factory
	update  *ocfl.ObjectUpdate
	prefix  string
	seq     int
	entries map[string]string
	order   []string
	closed  bool
	once    sync.Once
	l       *zap.Logger
}

// ObjectID of the object being written
func (s *Session) ObjectID() string {
	return s.update.ObjectID()
}

func (s *Session) checkOpen() error {
	if s.closed {
		return status.ErrSessionClosed.Wrapf("object %q", s.ObjectID())
	}
	return nil
}

// Write stages content at some logical path, computing its digest with the configured algorithm.
//
// Writing twice at the same logical path replaces the earlier content.
func (s *Session) Write(ctx context.Context, logicalPath string, rdr io.Reader) (Written, error) {
	if err := s.checkOpen(); err != nil {
		return Written{}, err
	}
	if _, err := s.f.repo.PathMapper().ContentPath(logicalPath); err != nil {
		return Written{}, status.ErrCommit.Wrap(err)
	}

	key, ok := s.entries[logicalPath]
	if !ok {
		s.seq++
		key = s.prefix + "-" + strconv.Itoa(s.seq)
	}
	dw := s.f.DigestAlgorithm().NewDigestWriter(nil)
	if err := s.f.staging.Put(ctx, key, io.TeeReader(rdr, dw), storage.OverWrite); err != nil {
		return Written{}, status.ErrCommit.Wrapf("staging %q: %v", logicalPath, err)
	}
	if !ok {
		s.entries[logicalPath] = key
		s.order = append(s.order, logicalPath)
	}

	w := Written{LogicalPath: logicalPath, Digest: dw.Digest(), Size: dw.Written()}
	s.l.Debug("staged content", zap.String("path", logicalPath), zap.Int64("size", w.Size))
	return w, nil
}

// SetMetadata stages the resource headers for this object
func (s *Session) SetMetadata(ctx context.Context, headers *model.ResourceHeaders) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if headers == nil {
		return status.ErrCommit.Wrapf("no headers for object %q", s.ObjectID())
	}
	data, err := json.MarshalIndent(headers, "", "  ")
	if err != nil {
		return status.ErrCommit.Wrap(err)
	}
	_, err = s.Write(ctx, HeadersPath, bytes.NewReader(data))
	return err
}

// WriteDescription stages the descriptive properties of a resource as N-Triples, one triple per property,
// sorted by predicate.
//
// The subject of all triples is the object itself.
func (s *Session) WriteDescription(ctx context.Context, name string, props model.Properties) (Written, error) {
	var buf bytes.Buffer
	subject := s.ObjectID()
	for _, k := range props.Keys() {
		fmt.Fprintf(&buf, "<%s> <%s> %s .\n", subject, k, literal(props[k]))
	}
	return s.Write(ctx, DescriptionPath(name), &buf)
}

// DescriptionPath returns the logical path of the description file for a resource name
func DescriptionPath(name string) string {
	return name + DescriptionSuffix
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

func literal(value string) string {
	return `"` + literalEscaper.Replace(value) + `"`
}

// Staged returns the logical paths staged so far, in write order
func (s *Session) Staged() []string {
	return append([]string(nil), s.order...)
}

// Commit publishes all staged content as a new version of the object.
//
// The version is authored by the factory's service identity. Staging and the object lock are released
// whether the commit succeeds or fails.
func (s *Session) Commit(ctx context.Context) (ocfl.VersionID, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	defer s.Abort()

	files := make([]ocfl.StagedFile, 0, len(s.order))
	for _, logicalPath := range s.order {
		key := s.entries[logicalPath]
		files = append(files, ocfl.StagedFile{
			LogicalPath: logicalPath,
			Open: func() (io.ReadCloser, error) {
				return s.f.staging.Get(ctx, key)
			},
		})
	}

	info := ocfl.VersionInfo{
		Created: time.Now().UTC(),
		Message: s.f.message,
		User: ocfl.User{
			Name:    s.f.user.Name,
			Address: s.f.user.Email,
		},
	}
	v, err := s.update.Commit(ctx, info, files, ocfl.NewVersion)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", status.ErrCommit.Wrap(err)
	}
	s.l.Info("committed version", zap.String("version", string(v)), zap.Int("files", len(files)))
	return v, nil
}

// Abort discards everything staged and releases the object lock. Abort is idempotent.
func (s *Session) Abort() {
	s.once.Do(func() {
		s.closed = true
		s.update.Close()
		s.f.metrics.SessionClosed()
		if err := s.discard(); err != nil {
			s.l.Warn("could not discard staged content", zap.Error(err))
		}
	})
}

func (s *Session) discard() error {
	var err error
	ctx := context.Background()
	for _, logicalPath := range s.order {
		if e := s.f.staging.Delete(ctx, s.entries[logicalPath]); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}
