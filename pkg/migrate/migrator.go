// Package migrate re-materializes legacy resources as versioned target objects.
//
// A ResourceMigrator transforms one resource at a time. A TaskManager schedules
// resource migrations on a bounded pool of workers and aggregates their outcomes.
package migrate

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/migrate/status"
	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/ocfl"
	"github.com/oneconcern/migrator/pkg/source"
)

// RootContentName is the logical name used for the repository root resource
const RootContentName = "fcr-root"

// Outcome of one resource migration
type Outcome struct {
	ResourceID string
	ObjectID   string
	Version    ocfl.VersionID
	Bytes      int64
	Err        error
}

// Succeeded tells if the resource has been committed
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Migrator migrates a single resource
type Migrator interface {
	Migrate(context.Context, model.Resource) Outcome
}

// MigratorOption configures a ResourceMigrator
type MigratorOption func(*ResourceMigrator)

// MigratorLogger sets the logger of a ResourceMigrator
func MigratorLogger(l *zap.Logger) MigratorOption {
	return func(m *ResourceMigrator) {
		if l != nil {
			m.l = l
		}
	}
}

// WithClock sets the time source for header timestamps not recorded by the source
func WithClock(now func() time.Time) MigratorOption {
	return func(m *ResourceMigrator) {
		if now != nil {
			m.now = now
		}
	}
}

// ResourceMigrator transforms a legacy resource into one new version of a target object.
//
// The source is never mutated. Children of a container are not visited.
type ResourceMigrator struct {
	provider source.Provider
	opener   SessionOpener
	l        *zap.Logger
	now      func() time.Time
}

var _ Migrator = &ResourceMigrator{}

// NewResourceMigrator builds a resource migrator reading from a provider and writing through sessions
func NewResourceMigrator(provider source.Provider, opener SessionOpener, opts ...MigratorOption) *ResourceMigrator {
	m := &ResourceMigrator{
		provider: provider,
		opener:   opener,
		l:        zap.NewNop(),
		now:      time.Now,
	}
	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Migrate a single resource. The outcome carries the failure cause, if any.
//
// A failure at any step discards the session, so that no partial version is ever committed.
func (m *ResourceMigrator) Migrate(ctx context.Context, r model.Resource) Outcome {
	r.ID = model.CleanResourceID(r.ID)
	outcome := Outcome{
		ResourceID: r.ID,
		ObjectID:   model.ObjectID(r.ID),
	}
	l := m.l.With(zap.String("resource", r.ID), zap.String("object", outcome.ObjectID))

	props, err := m.provider.Properties(ctx, r)
	if err != nil {
		outcome.Err = status.ErrSourceRead.Wrap(err)
		return outcome
	}

	s, err := m.opener.OpenSession(ctx, outcome.ObjectID)
	if err != nil {
		outcome.Err = status.ErrCommit.Wrap(err)
		return outcome
	}
	committed := false
	defer func() {
		if !committed {
			s.Abort()
		}
	}()

	headers := m.headers(r, outcome.ObjectID, props)
	name := contentName(r)
	if r.IsBinary() {
		n, err := m.writeContent(ctx, s, r, name, headers)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Bytes = n
	}

	if err = s.SetMetadata(ctx, headers); err != nil {
		outcome.Err = status.ErrCommit.Wrap(err)
		return outcome
	}
	if desc := descriptive(props); len(desc) > 0 {
		if _, err = s.WriteDescription(ctx, name, desc); err != nil {
			outcome.Err = status.ErrCommit.Wrap(err)
			return outcome
		}
	}

	outcome.Version, err = s.Commit(ctx)
	committed = true
	if err != nil {
		outcome.Err = status.ErrCommit.Wrap(err)
		return outcome
	}
	l.Debug("migrated resource", zap.String("version", string(outcome.Version)), zap.Int64("bytes", outcome.Bytes))
	return outcome
}

func (m *ResourceMigrator) writeContent(ctx context.Context, s Session, r model.Resource, name string, headers *model.ResourceHeaders) (int64, error) {
	rdr, err := m.provider.Content(ctx, r)
	if err != nil {
		return 0, status.ErrSourceRead.Wrap(err)
	}
	defer rdr.Close()

	src := &sourceReader{r: rdr}
	w, err := s.Write(ctx, name, src)
	if src.err != nil {
		return 0, status.ErrSourceRead.Wrap(src.err)
	}
	if err != nil {
		return 0, status.ErrCommit.Wrap(err)
	}

	headers.ContentPath = name
	headers.ContentSize = w.Size
	headers.Digests = []string{model.DigestURN(m.opener.DigestAlgorithm(), w.Digest)}
	return w.Size, nil
}

// headers builds the resource headers, with technical metadata renamed to the current vocabulary
func (m *ResourceMigrator) headers(r model.Resource, objectID string, props model.Properties) *model.ResourceHeaders {
	now := m.now().UTC()
	user := m.opener.User()
	h := &model.ResourceHeaders{
		HeadersVersion:   model.HeadersVersion,
		ID:               objectID,
		InteractionModel: model.BasicContainer,
		CreatedBy:        firstNonEmpty(props[model.CreatedByProperty], user.Name),
		CreatedDate:      parseTimestamp(props[model.CreatedProperty], now),
		LastModifiedBy:   firstNonEmpty(props[model.LastModifiedByProperty], user.Name),
		LastModifiedDate: parseTimestamp(props[model.LastModifiedProperty], now),
	}
	if !r.IsRoot() {
		h.Parent = model.ObjectID(model.ParentID(r.ID))
	}
	if !r.IsBinary() {
		return h
	}

	h.InteractionModel = model.NonRDFSource
	technical := make(model.Properties)
	for k, v := range props {
		if model.IsTechnicalMetadata(k) {
			technical[k] = v
		}
	}
	mapped := model.MapTechnicalMetadata(technical)
	h.MimeType = mapped[model.MimeTypeProperty]
	h.Filename = mapped[model.FilenameProperty]
	h.Properties = mapped
	return h
}

// descriptive properties are neither technical metadata nor managed by the repository
func descriptive(props model.Properties) model.Properties {
	desc := make(model.Properties)
	for k, v := range props {
		if model.IsTechnicalMetadata(k) || model.IsServerManaged(k) {
			continue
		}
		desc[k] = v
	}
	return desc
}

func contentName(r model.Resource) string {
	if r.IsRoot() {
		return RootContentName
	}
	return r.Name()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

// sourceReader tells read errors on the source apart from write errors on the target
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
