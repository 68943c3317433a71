package upgrade

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	merrors "github.com/oneconcern/migrator/pkg/errors"
	migratestatus "github.com/oneconcern/migrator/pkg/migrate/status"
	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/session"
	"github.com/oneconcern/migrator/pkg/source/memory"
	"github.com/oneconcern/migrator/pkg/upgrade/status"
)

var allVersions = []model.Version{model.V4_7_5, model.V5, model.V6}

func TestLookup(t *testing.T) {
	supported := map[model.Transition]Path{
		{Source: model.V4_7_5, Target: model.V5}: F47ToF5,
		{Source: model.V5, Target: model.V6}:     F5ToF6,
	}
	for _, src := range allVersions {
		for _, tgt := range allVersions {
			p, err := Lookup(src, tgt)
			expected, ok := supported[model.Transition{Source: src, Target: tgt}]
			if ok {
				require.NoError(t, err)
				assert.Equal(t, expected, p)
				continue
			}
			require.Error(t, err)
			assert.True(t, merrors.Is(err, status.ErrUnsupportedPath))
			assert.Contains(t, err.Error(), string(src))
			assert.Contains(t, err.Error(), string(tgt))
		}
	}
	assert.Len(t, Paths(), 2)
	assert.Equal(t, "5+ -> 6+", F5ToF6.String())
}

func TestParseTransition(t *testing.T) {
	tr, err := ParseTransition("5.2", "6")
	require.NoError(t, err)
	assert.Equal(t, model.Transition{Source: model.V5, Target: model.V6}, tr)

	for _, pair := range [][2]string{{"3", "6+"}, {"5+", "7"}, {"", ""}} {
		_, err = ParseTransition(pair[0], pair[1])
		require.Error(t, err)
		assert.True(t, merrors.Is(err, status.ErrUnsupportedPath))
		assert.Contains(t, err.Error(), fmt.Sprintf("%q", pair[0]))
		assert.Contains(t, err.Error(), fmt.Sprintf("%q", pair[1]))
	}
}

func TestCreateUnsupportedHasNoSideEffect(t *testing.T) {
	for _, src := range allVersions {
		for _, tgt := range allVersions {
			if _, err := Lookup(src, tgt); err == nil {
				continue
			}
			fs := afero.NewMemMapFs()
			_, err := Create(Config{
				SourceVersion: src,
				TargetVersion: tgt,
				SourceDir:     "/export",
				OutputDir:     "/out",
			}, Dependencies{Fs: fs})
			require.Error(t, err)
			assert.True(t, merrors.Is(err, status.ErrUnsupportedPath), "%s -> %s", src, tgt)

			entries, err := afero.ReadDir(fs, "/")
			require.NoError(t, err)
			assert.Empty(t, entries, "%s -> %s", src, tgt)
		}
	}
}

func TestCreateValidatesConfiguration(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := memory.New()
	for _, cfg := range []Config{
		{SourceVersion: model.V5, TargetVersion: model.V6},
		{SourceVersion: model.V5, TargetVersion: model.V6, OutputDir: "/out", DigestAlgorithm: "crc32"},
	} {
		_, err := Create(cfg, Dependencies{Fs: fs, Source: p})
		require.Error(t, err)
		assert.True(t, merrors.Is(err, status.ErrConfiguration))
	}

	_, err := Create(Config{SourceVersion: model.V4_7_5, TargetVersion: model.V5}, Dependencies{Fs: fs})
	assert.True(t, merrors.Is(err, status.ErrConfiguration))

	_, err = Create(Config{SourceVersion: model.V4_7_5, TargetVersion: model.V5, SourceDir: "/none"}, Dependencies{Fs: fs})
	assert.True(t, merrors.Is(err, status.ErrConfiguration))

	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Threads: 3}.WithDefaults()
	assert.Equal(t, 3, cfg.Threads)
	assert.Equal(t, 6, cfg.QueueSize)
	assert.Equal(t, DefaultDigestAlgorithm, cfg.DigestAlgorithm)
	assert.Equal(t, model.Contributor{Name: DefaultFedoraUser, Email: DefaultFedoraUserAddress}, cfg.User())
	assert.Positive(t, Config{}.WithDefaults().Threads)
}

func newF5ToF6Manager(t testing.TB, p *memory.Provider) (Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	m, err := Create(Config{
		SourceVersion: model.V5,
		TargetVersion: model.V6,
		OutputDir:     "/out",
		Threads:       2,
	}, Dependencies{Fs: fs, Source: p, SessionOptions: []session.Option{session.WithGOOS("linux")}})
	require.NoError(t, err)
	return m, fs
}

func TestF5ToF6(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := memory.New().
		AddContainer("/A", model.Properties{"dc:title": "A"}).
		AddBinary("/A/B", []byte("content"), model.Properties{model.LegacyMimeTypeProperty: "text/plain"})
	m, fs := newF5ToF6Manager(t, p)
	assert.Equal(t, F5ToF6, m.Path())

	for _, dir := range []string{session.OCFLRootDir, session.WorkDir, session.StagingDir} {
		ok, err := afero.DirExists(fs, "/out/"+dir)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Aggregate.Succeeded, "root, A and B")
	assert.Zero(t, res.Aggregate.Failed)
	assert.Equal(t, int64(7), res.Aggregate.Bytes)
	assert.Contains(t, res.Summary(), "3 succeeded, 0 failed, 0 dropped, 7B written")

	repo := m.(*f5ToF6).factory.Repository()
	for _, id := range []string{"info:fedora", "info:fedora/A", "info:fedora/A/B"} {
		details, err := repo.Describe(id)
		require.NoError(t, err, id)
		assert.Len(t, details.Versions, 1)
	}
}

func TestF5ToF6IsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 10
	p := memory.New()
	for i := 0; i < n; i++ {
		p.AddBinary(fmt.Sprintf("/C/r%d", i), []byte("x"), nil)
	}
	p.AddBinary("/C/broken", []byte("broken"), nil).FailContent("/C/broken", errors.New("unreadable"))
	m, _ := newF5ToF6Manager(t, p)

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n+2, res.Aggregate.Succeeded)
	assert.Equal(t, 1, res.Aggregate.Failed)
	assert.Equal(t, []string{"/C/broken"}, res.Aggregate.FailedIDs())
}

func TestF5ToF6ListingFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := memory.New().
		AddBinary("/A/B", []byte("b"), nil).
		AddBinary("/C", []byte("c"), nil).
		FailChildren("/A", errors.New("cannot list"))
	m, _ := newF5ToF6Manager(t, p)

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Aggregate.Succeeded, "root and C")
	assert.Equal(t, 1, res.Aggregate.Failed)
	assert.Equal(t, 3, res.Aggregate.Total(), "every discovered resource is counted once")
	assert.Equal(t, []string{"/A"}, res.Aggregate.FailedIDs())
	assert.True(t, merrors.Is(res.Aggregate.Failures[0].Err, migratestatus.ErrSourceRead))

	repo := m.(*f5ToF6).factory.Repository()
	_, err = repo.Describe(model.ObjectID("/A"))
	assert.Error(t, err, "a container that cannot be listed is not migrated")
	_, err = repo.Describe(model.ObjectID("/A/B"))
	assert.Error(t, err)
}

func TestF5ToF6SubmitsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := memory.New().
		AddContainer("/A", nil).
		AddBinary("/A/B", []byte("b"), nil).
		ListTwice("/A", "/A/B").
		ListTwice(model.RootID, "/A")
	m, _ := newF5ToF6Manager(t, p)

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Aggregate.Succeeded, "root, A and B")
	assert.Zero(t, res.Aggregate.Failed)
	assert.Equal(t, 3, res.Aggregate.Total())

	repo := m.(*f5ToF6).factory.Repository()
	for _, id := range []string{"/A", "/A/B"} {
		details, err := repo.Describe(model.ObjectID(id))
		require.NoError(t, err, id)
		assert.Len(t, details.Versions, 1, id)
	}
}

func TestF5ToF6Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, _ := newF5ToF6Manager(t, memory.New().AddContainer("/A", nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := m.Run(ctx)
	require.Error(t, err)
	assert.Zero(t, res.Aggregate.Succeeded)
}

func TestF47ToF5(t *testing.T) {
	p := memory.New().
		AddContainer("/A", model.Properties{"dc:title": "untouched"}).
		AddBinary("/A/B", []byte("content"), model.Properties{
			"fedora:digest":          "abc123",
			"fedora:mimeType":        "text/plain",
			"premis:hasOriginalName": "file.txt",
			"dc:title":               "B",
		}).
		AddBinary("/C", nil, nil)
	ctx := context.Background()

	dry, err := Create(Config{SourceVersion: model.V4_7_5, TargetVersion: model.V5, DryRun: true}, Dependencies{Source: p})
	require.NoError(t, err)
	res, err := dry.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Aggregate.Succeeded)
	props, err := p.Properties(ctx, model.Resource{ID: "/A/B"})
	require.NoError(t, err)
	assert.Contains(t, props, "fedora:digest", "a dry run does not update the source")

	m, err := Create(Config{SourceVersion: model.V4_7_5, TargetVersion: model.V5}, Dependencies{Source: p})
	require.NoError(t, err)
	assert.Equal(t, F47ToF5, m.Path())
	res, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Aggregate.Succeeded)
	assert.Zero(t, res.Aggregate.Failed)

	props, err = p.Properties(ctx, model.Resource{ID: "/A/B"})
	require.NoError(t, err)
	assert.Equal(t, model.Properties{
		"premis:hasMessageDigest": "abc123",
		"ebucore:hasMimeType":     "text/plain",
		"ebucore:filename":        "file.txt",
		"dc:title":                "B",
	}, props)

	props, err = p.Properties(ctx, model.Resource{ID: "/A"})
	require.NoError(t, err)
	assert.Equal(t, model.Properties{"dc:title": "untouched"}, props)
}

func TestF47ToF5Failures(t *testing.T) {
	p := memory.New().
		AddBinary("/A", nil, model.Properties{"fedora:digest": "a"}).
		AddBinary("/B", nil, model.Properties{"fedora:digest": "b"}).
		FailProperties("/A", errors.New("unreadable"))

	m, err := Create(Config{SourceVersion: model.V4_7_5, TargetVersion: model.V5}, Dependencies{Source: p})
	require.NoError(t, err)
	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Aggregate.Succeeded)
	assert.Equal(t, []string{"/A"}, res.Aggregate.FailedIDs())
}
