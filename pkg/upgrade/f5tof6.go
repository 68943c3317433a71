package upgrade

import (
	"context"
	"time"

	"github.com/docker/go-units"
	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/metrics"
	"github.com/oneconcern/migrator/pkg/migrate"
	migratestatus "github.com/oneconcern/migrator/pkg/migrate/status"
	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/session"
	"github.com/oneconcern/migrator/pkg/source"
	"github.com/oneconcern/migrator/pkg/upgrade/status"
)

// f5ToF6 recreates every resource of the source tree as an OCFL object
type f5ToF6 struct {
	cfg      Config
	provider source.Provider
	factory  *session.Factory
	tasks    *migrate.TaskManager
	metrics  *metrics.Metrics
	l        *zap.Logger
}

func newF5ToF6(cfg Config, deps Dependencies, l *zap.Logger) (*f5ToF6, error) {
	provider, err := openSource(cfg, deps, l)
	if err != nil {
		return nil, err
	}
	opts := append([]session.Option{session.Logger(l), session.WithMetrics(deps.Metrics)}, deps.SessionOptions...)
	factory, err := session.Configure(deps.Fs, cfg.OutputDir, cfg.DigestAlgorithm, cfg.User(), opts...)
	if err != nil {
		return nil, status.ErrConfiguration.Wrap(err)
	}
	migrator := migrate.NewResourceMigrator(provider, migrate.FromFactory(factory), migrate.MigratorLogger(l))
	tasks := migrate.NewTaskManager(migrator,
		migrate.Threads(cfg.Threads),
		migrate.QueueSize(cfg.QueueSize),
		migrate.TaskLogger(l),
		migrate.TaskMetrics(deps.Metrics),
	)
	return &f5ToF6{
		cfg:      cfg,
		provider: provider,
		factory:  factory,
		tasks:    tasks,
		metrics:  deps.Metrics,
		l:        l,
	}, nil
}

func (u *f5ToF6) Path() Path {
	return F5ToF6
}

// Run walks the source tree from its root and submits one migration task per resource.
//
// Traversal is driven by an explicit worklist. A container whose children cannot be listed is
// recorded as a single failure, without being migrated, and its siblings are still visited.
func (u *f5ToF6) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	u.tasks.Start(ctx)
	u.l.Info("starting migration",
		zap.String("output", u.cfg.OutputDir),
		zap.Int("threads", u.cfg.Threads),
		zap.String("digest", u.cfg.DigestAlgorithm))

	listing, runErr := u.walk(ctx)

	agg := u.tasks.AwaitCompletion()
	u.recordListing(&agg, listing)
	if runErr == nil && ctx.Err() != nil {
		runErr = migratestatus.ErrInterrupted.Wrap(ctx.Err())
	}

	res := Result{Path: F5ToF6, Aggregate: agg, Elapsed: time.Since(start)}
	u.l.Info("migration complete",
		zap.Int("succeeded", agg.Succeeded),
		zap.Int("failed", agg.Failed),
		zap.Int("dropped", agg.Dropped),
		zap.String("size", units.HumanSize(float64(agg.Bytes))),
		zap.Duration("elapsed", res.Elapsed),
		zap.Error(runErr))
	return res, runErr
}

func (u *f5ToF6) walk(ctx context.Context) ([]migrate.Failure, error) {
	root, err := u.provider.Root(ctx)
	if err != nil {
		return nil, migratestatus.ErrSourceRead.Wrap(err)
	}

	var failures []migrate.Failure
	seen := make(map[string]struct{})
	worklist := []model.Resource{root}
	for len(worklist) > 0 {
		if ctx.Err() != nil {
			return failures, migratestatus.ErrInterrupted.Wrap(ctx.Err())
		}
		r := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		id := model.CleanResourceID(r.ID)
		if _, ok := seen[id]; ok {
			u.l.Warn("resource discovered twice, skipped", zap.String("resource", id))
			continue
		}
		seen[id] = struct{}{}

		var children []model.Resource
		if !r.IsBinary() {
			// a container whose subtree cannot be listed is not migrated
			if children, err = u.provider.Children(ctx, r); err != nil {
				failures = append(failures, migrate.Failure{
					ResourceID: id,
					ObjectID:   model.ObjectID(id),
					Err:        migratestatus.ErrSourceRead.Wrapf("listing children: %v", err),
				})
				u.l.Warn("could not list children", zap.String("resource", id), zap.Error(err))
				continue
			}
		}

		if err = u.tasks.Submit(ctx, r); err != nil {
			if ctx.Err() != nil {
				return failures, migratestatus.ErrInterrupted.Wrap(ctx.Err())
			}
			return failures, err
		}
		worklist = append(worklist, children...)
	}
	return failures, nil
}

func (u *f5ToF6) recordListing(agg *migrate.AggregateResult, failures []migrate.Failure) {
	agg.Failed += len(failures)
	agg.Failures = append(agg.Failures, failures...)
	for range failures {
		u.metrics.TaskDone(metrics.OutcomeFailed, 0, 0)
	}
}
