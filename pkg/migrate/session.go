package migrate

import (
	"context"
	"io"

	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/ocfl"
	"github.com/oneconcern/migrator/pkg/session"
)

// Session is a write session on one target object
type Session interface {
	ObjectID() string
	Write(ctx context.Context, logicalPath string, rdr io.Reader) (session.Written, error)
	SetMetadata(ctx context.Context, headers *model.ResourceHeaders) error
	WriteDescription(ctx context.Context, name string, props model.Properties) (session.Written, error)
	Commit(ctx context.Context) (ocfl.VersionID, error)
	Abort()
}

// SessionOpener hands out write sessions on target objects
type SessionOpener interface {
	OpenSession(ctx context.Context, objectID string) (Session, error)
	DigestAlgorithm() string
	User() model.Contributor
}

// FromFactory exposes a storage session factory as a SessionOpener
func FromFactory(f *session.Factory) SessionOpener {
	return factoryOpener{f: f}
}

type factoryOpener struct {
	f *session.Factory
}

func (o factoryOpener) OpenSession(ctx context.Context, objectID string) (Session, error) {
	s, err := o.f.NewSession(ctx, objectID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (o factoryOpener) DigestAlgorithm() string {
	return o.f.DigestAlgorithm().Name()
}

func (o factoryOpener) User() model.Contributor {
	return o.f.User()
}
