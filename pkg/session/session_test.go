package session

import (
	"context"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/migrator/pkg/errors"
	"github.com/oneconcern/migrator/pkg/metrics"
	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/ocfl"
	ocflstatus "github.com/oneconcern/migrator/pkg/ocfl/status"
	"github.com/oneconcern/migrator/pkg/session/status"
)

const testOutput = "/out"

var testUser = model.Contributor{Name: "fedoraAdmin", Email: "info:fedora/fedoraAdmin"}

func setupFactory(t testing.TB, opts ...Option) (*Factory, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	f, err := Configure(fs, testOutput, "sha512", testUser, append([]Option{WithGOOS("linux")}, opts...)...)
	require.NoError(t, err)
	return f, fs
}

func readContent(t testing.TB, f *Factory, objectID, logicalPath string) string {
	t.Helper()
	rdr, err := f.Repository().GetContent(objectID, logicalPath)
	require.NoError(t, err)
	defer rdr.Close()
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	return string(b)
}

func TestConfigureRejectsUnknownDigest(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Configure(fs, testOutput, "crc32", testUser)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrConfiguration))

	ok, err := afero.Exists(fs, testOutput)
	require.NoError(t, err)
	assert.False(t, ok, "nothing is created on an invalid configuration")
}

func TestConfigureValidation(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Configure(fs, "", "sha512", testUser)
	assert.True(t, errors.Is(err, status.ErrConfiguration))

	_, err = Configure(fs, testOutput, "sha512", model.Contributor{})
	assert.True(t, errors.Is(err, status.ErrConfiguration))

	require.NoError(t, afero.WriteFile(fs, "/file", []byte("x"), 0600))
	_, err = Configure(fs, "/file", "sha512", testUser)
	assert.True(t, errors.Is(err, status.ErrConfiguration))
}

func TestConfigureLayout(t *testing.T) {
	f, fs := setupFactory(t)
	for _, dir := range []string{OCFLRootDir, WorkDir, StagingDir} {
		ok, err := afero.DirExists(fs, path.Join(testOutput, dir))
		require.NoError(t, err)
		assert.True(t, ok, dir)
	}
	assert.Equal(t, "sha512", f.DigestAlgorithm().Name())
	assert.Equal(t, "fedoraAdmin", f.User().Name)

	// resuming on an existing output
	_, err := Configure(fs, testOutput, "sha512", testUser)
	require.NoError(t, err)
}

func TestConfigureSelectsPathMapper(t *testing.T) {
	f, _ := setupFactory(t, WithGOOS("windows"))
	assert.Equal(t, ocfl.PercentEncodingWindows().Name(), f.Repository().PathMapper().Name())

	f, _ = setupFactory(t)
	assert.Equal(t, ocfl.PercentEncodingLinux().Name(), f.Repository().PathMapper().Name())
}

func TestSessionCommit(t *testing.T) {
	m := metrics.New()
	f, fs := setupFactory(t, WithMetrics(m))
	ctx := context.Background()
	objectID := model.ObjectID("/A/B")

	s, err := f.NewSession(ctx, objectID)
	require.NoError(t, err)
	assert.Equal(t, objectID, s.ObjectID())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OpenSessions))

	w, err := s.Write(ctx, "B", strings.NewReader("binary content"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), w.Size)
	assert.Equal(t, ocfl.SHA512.Sum([]byte("binary content")), w.Digest)

	require.NoError(t, s.SetMetadata(ctx, &model.ResourceHeaders{
		HeadersVersion:   model.HeadersVersion,
		ID:               objectID,
		InteractionModel: model.NonRDFSource,
		CreatedDate:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	_, err = s.WriteDescription(ctx, "B", model.Properties{
		"dc:title":   `a "quoted" title`,
		"dc:creator": "someone",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", HeadersPath, "B~fcr-desc.nt"}, s.Staged())

	v, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, ocfl.VersionID("v1"), v)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.OpenSessions))

	details, err := f.Repository().Describe(objectID)
	require.NoError(t, err)
	head := details.HeadVersion()
	assert.Equal(t, DefaultCommitMessage, head.Message)
	assert.Equal(t, "fedoraAdmin", head.User.Name)
	assert.Equal(t, "info:fedora/fedoraAdmin", head.User.Address)
	assert.Len(t, head.State, 3)

	assert.Equal(t, "binary content", readContent(t, f, objectID, "B"))
	assert.Contains(t, readContent(t, f, objectID, HeadersPath), `"interactionModel": "http://www.w3.org/ns/ldp#NonRDFSource"`)
	assert.Equal(t,
		"<info:fedora/A/B> <dc:creator> \"someone\" .\n"+
			"<info:fedora/A/B> <dc:title> \"a \\\"quoted\\\" title\" .\n",
		readContent(t, f, objectID, "B~fcr-desc.nt"))

	staged, err := afero.ReadDir(fs, path.Join(testOutput, StagingDir))
	require.NoError(t, err)
	for _, fi := range staged {
		assert.True(t, fi.IsDir(), "staged content %q is released", fi.Name())
	}

	// a session is single use
	_, err = s.Write(ctx, "C", strings.NewReader("c"))
	assert.True(t, errors.Is(err, status.ErrSessionClosed))
	_, err = s.Commit(ctx)
	assert.True(t, errors.Is(err, status.ErrSessionClosed))
}

func TestSessionRewrite(t *testing.T) {
	f, _ := setupFactory(t)
	ctx := context.Background()
	s, err := f.NewSession(ctx, "info:fedora/A")
	require.NoError(t, err)

	_, err = s.Write(ctx, "A", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = s.Write(ctx, "A", strings.NewReader("second"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, s.Staged())

	_, err = s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", readContent(t, f, "info:fedora/A", "A"))
}

func TestSessionExclusive(t *testing.T) {
	f, _ := setupFactory(t)
	ctx := context.Background()

	s, err := f.NewSession(ctx, "info:fedora/A")
	require.NoError(t, err)
	_, err = f.NewSession(ctx, "info:fedora/A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ocflstatus.ErrObjectLocked))

	s.Abort()
	s.Abort()

	s, err = f.NewSession(ctx, "info:fedora/A")
	require.NoError(t, err)
	s.Abort()
}

func TestSessionAbort(t *testing.T) {
	f, fs := setupFactory(t)
	ctx := context.Background()

	s, err := f.NewSession(ctx, "info:fedora/A")
	require.NoError(t, err)
	_, err = s.Write(ctx, "A", strings.NewReader("discarded"))
	require.NoError(t, err)
	s.Abort()

	ok, err := f.Repository().ContainsObject("info:fedora/A")
	require.NoError(t, err)
	assert.False(t, ok)

	staged, err := afero.ReadDir(fs, path.Join(testOutput, StagingDir))
	require.NoError(t, err)
	for _, fi := range staged {
		assert.True(t, fi.IsDir(), "staged content %q is released", fi.Name())
	}

	_, err = s.Write(ctx, "A", strings.NewReader("x"))
	assert.True(t, errors.Is(err, status.ErrSessionClosed))
	assert.True(t, errors.Is(s.SetMetadata(ctx, &model.ResourceHeaders{}), status.ErrSessionClosed))
}

func TestSessionInvalidPath(t *testing.T) {
	f, _ := setupFactory(t)
	ctx := context.Background()
	s, err := f.NewSession(ctx, "info:fedora/A")
	require.NoError(t, err)
	defer s.Abort()

	_, err = s.Write(ctx, "../escape", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrCommit))
}

func TestNewSessionCancelled(t *testing.T) {
	f, _ := setupFactory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.NewSession(ctx, "info:fedora/A")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommitMessageOption(t *testing.T) {
	f, _ := setupFactory(t, CommitMessage("custom"))
	ctx := context.Background()
	s, err := f.NewSession(ctx, "info:fedora/A")
	require.NoError(t, err)
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	details, err := f.Repository().Describe("info:fedora/A")
	require.NoError(t, err)
	assert.Equal(t, "custom", details.HeadVersion().Message)
}
