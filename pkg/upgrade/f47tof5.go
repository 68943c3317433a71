package upgrade

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/metrics"
	"github.com/oneconcern/migrator/pkg/migrate"
	migratestatus "github.com/oneconcern/migrator/pkg/migrate/status"
	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/source"
	"github.com/oneconcern/migrator/pkg/upgrade/status"
)

// f47ToF5 renames the technical metadata of every binary in place
type f47ToF5 struct {
	cfg     Config
	source  source.ProviderMutator
	metrics *metrics.Metrics
	l       *zap.Logger
}

func newF47ToF5(cfg Config, deps Dependencies, l *zap.Logger) (*f47ToF5, error) {
	provider, err := openSource(cfg, deps, l)
	if err != nil {
		return nil, err
	}
	mutator, ok := provider.(source.ProviderMutator)
	if !ok {
		return nil, status.ErrConfiguration.Wrapf("source %T cannot be updated in place", provider)
	}
	return &f47ToF5{
		cfg:     cfg,
		source:  mutator,
		metrics: deps.Metrics,
		l:       l,
	}, nil
}

func (u *f47ToF5) Path() Path {
	return F47ToF5
}

// Run visits the whole tree with an explicit worklist. In dry-run mode, renames are only logged.
func (u *f47ToF5) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var agg migrate.AggregateResult

	root, err := u.source.Root(ctx)
	if err != nil {
		return Result{Path: F47ToF5, Elapsed: time.Since(start)}, migratestatus.ErrSourceRead.Wrap(err)
	}

	var runErr error
	worklist := []model.Resource{root}
	for len(worklist) > 0 {
		if ctx.Err() != nil {
			agg.Dropped += len(worklist)
			u.metrics.Dropped(len(worklist))
			runErr = migratestatus.ErrInterrupted.Wrap(ctx.Err())
			break
		}
		r := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		if r.IsBinary() {
			u.record(&agg, r, u.renameProperties(ctx, r))
			continue
		}
		children, err := u.source.Children(ctx, r)
		if err != nil {
			u.record(&agg, r, migratestatus.ErrSourceRead.Wrapf("listing children: %v", err))
			continue
		}
		worklist = append(worklist, children...)
	}

	res := Result{Path: F47ToF5, Aggregate: agg, Elapsed: time.Since(start)}
	u.l.Info("technical metadata upgrade complete",
		zap.Bool("dryRun", u.cfg.DryRun),
		zap.Int("binaries", agg.Succeeded),
		zap.Int("failed", agg.Failed),
		zap.Duration("elapsed", res.Elapsed))
	return res, runErr
}

func (u *f47ToF5) record(agg *migrate.AggregateResult, r model.Resource, err error) {
	if err == nil {
		agg.Succeeded++
		u.metrics.TaskDone(metrics.OutcomeSucceeded, 0, 0)
		return
	}
	agg.Failed++
	agg.Failures = append(agg.Failures, migrate.Failure{ResourceID: r.ID, Err: err})
	u.metrics.TaskDone(metrics.OutcomeFailed, 0, 0)
	u.l.Warn("could not upgrade resource", zap.String("resource", r.ID), zap.Error(err))
}

func (u *f47ToF5) renameProperties(ctx context.Context, r model.Resource) error {
	props, err := u.source.Properties(ctx, r)
	if err != nil {
		return migratestatus.ErrSourceRead.Wrap(err)
	}
	for _, rename := range model.TechnicalMetadataMapping {
		value, ok := props[rename.From]
		if !ok {
			continue
		}
		u.l.Debug("renaming property",
			zap.String("resource", r.ID),
			zap.String("from", rename.From),
			zap.String("to", rename.To),
			zap.Bool("dryRun", u.cfg.DryRun))
		if u.cfg.DryRun {
			continue
		}
		if err = u.source.SetProperty(ctx, r, rename.To, value); err != nil {
			return migratestatus.ErrCommit.Wrap(err)
		}
		if err = u.source.RemoveProperty(ctx, r, rename.From); err != nil {
			return migratestatus.ErrCommit.Wrap(err)
		}
	}
	return nil
}
