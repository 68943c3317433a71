package migrate

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/metrics"
	"github.com/oneconcern/migrator/pkg/migrate/status"
	"github.com/oneconcern/migrator/pkg/model"
)

// Failure of a single resource migration
type Failure struct {
	ResourceID string
	ObjectID   string
	Err        error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.ResourceID, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// AggregateResult summarizes all tasks of a run
type AggregateResult struct {
	Succeeded int
	Failed    int
	Dropped   int
	Bytes     int64
	Failures  []Failure
}

// Total number of resources accounted for
func (a AggregateResult) Total() int {
	return a.Succeeded + a.Failed + a.Dropped
}

// Err combines all failures, or returns nil when all tasks succeeded
func (a AggregateResult) Err() error {
	var err error
	for _, f := range a.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// FailedIDs lists the identifiers of the resources which failed to migrate
func (a AggregateResult) FailedIDs() []string {
	ids := make([]string, 0, len(a.Failures))
	for _, f := range a.Failures {
		ids = append(ids, f.ResourceID)
	}
	return ids
}

// TaskOption configures a TaskManager
type TaskOption func(*TaskManager)

// Threads sets the number of workers. Defaults to the number of CPUs.
func Threads(k int) TaskOption {
	return func(t *TaskManager) {
		if k > 0 {
			t.threads = k
		}
	}
}

// QueueSize sets the number of tasks which may wait for a worker. Defaults to twice the number of workers.
func QueueSize(n int) TaskOption {
	return func(t *TaskManager) {
		if n >= 0 {
			t.queueSize = n
		}
	}
}

// TaskLogger sets the logger of a TaskManager
func TaskLogger(l *zap.Logger) TaskOption {
	return func(t *TaskManager) {
		if l != nil {
			t.l = l
		}
	}
}

// TaskMetrics reports task outcomes
func TaskMetrics(m *metrics.Metrics) TaskOption {
	return func(t *TaskManager) {
		t.metrics = m
	}
}

// TaskManager runs one migration task per submitted resource on a fixed pool of workers.
//
// A failed task never cancels other tasks. When the run context is cancelled, queued tasks are
// dropped while running tasks complete.
type TaskManager struct {
	migrator  Migrator
	threads   int
	queueSize int
	l         *zap.Logger
	metrics   *metrics.Metrics

	mu      sync.RWMutex
	ctx     context.Context
	queue   chan model.Resource
	wg      sync.WaitGroup
	started bool
	closed  bool

	resMu  sync.Mutex
	result AggregateResult
}

// NewTaskManager builds a task manager. Workers are started by Start.
func NewTaskManager(migrator Migrator, opts ...TaskOption) *TaskManager {
	t := &TaskManager{
		migrator:  migrator,
		threads:   runtime.NumCPU(),
		queueSize: -1,
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(t)
	}
	if t.queueSize < 0 {
		t.queueSize = 2 * t.threads
	}
	return t
}

// Start the workers. The context governs the whole run: once cancelled, no queued task starts.
func (t *TaskManager) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	t.ctx = ctx
	t.queue = make(chan model.Resource, t.queueSize)
	t.wg.Add(t.threads)
	for i := 0; i < t.threads; i++ {
		go t.worker(i)
	}
	t.l.Debug("task manager started", zap.Int("threads", t.threads), zap.Int("queue", t.queueSize))
}

// Submit enqueues a migration task, blocking while the queue is full.
//
// Submit fails once the run is cancelled or completion has been awaited.
func (t *TaskManager) Submit(ctx context.Context, r model.Resource) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case !t.started:
		return status.ErrScheduling.Wrapf("task manager is not started")
	case t.closed:
		return status.ErrScheduling.Wrapf("task manager does not accept tasks any longer")
	}
	if err := t.ctx.Err(); err != nil {
		return status.ErrScheduling.Wrap(status.ErrInterrupted.Wrap(err))
	}

	select {
	case t.queue <- r:
		return nil
	case <-t.ctx.Done():
		return status.ErrScheduling.Wrap(status.ErrInterrupted.Wrap(t.ctx.Err()))
	case <-ctx.Done():
		return status.ErrScheduling.Wrap(ctx.Err())
	}
}

// AwaitCompletion stops accepting tasks, waits for all submitted tasks to be terminal and
// returns the aggregated result.
func (t *TaskManager) AwaitCompletion() AggregateResult {
	t.mu.Lock()
	if t.started && !t.closed {
		close(t.queue)
	}
	t.closed = true
	t.mu.Unlock()

	t.wg.Wait()

	t.resMu.Lock()
	defer t.resMu.Unlock()
	res := t.result
	res.Failures = append([]Failure(nil), t.result.Failures...)
	return res
}

func (t *TaskManager) worker(i int) {
	defer t.wg.Done()
	l := t.l.With(zap.Int("worker", i))
	for r := range t.queue {
		if t.ctx.Err() != nil {
			t.drop(r)
			continue
		}
		t.record(l, t.run(r))
	}
}

// run a task to completion, regardless of the cancellation of the run
func (t *TaskManager) run(r model.Resource) (outcome Outcome) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			outcome = Outcome{
				ResourceID: r.ID,
				ObjectID:   model.ObjectID(r.ID),
				Err:        status.ErrPanic.Wrapf("%v\n%s", p, debug.Stack()),
			}
		}
		t.metrics.TaskDone(outcomeLabel(outcome), outcome.Bytes, time.Since(start))
	}()
	return t.migrator.Migrate(context.WithoutCancel(t.ctx), r)
}

func outcomeLabel(o Outcome) string {
	if o.Succeeded() {
		return metrics.OutcomeSucceeded
	}
	return metrics.OutcomeFailed
}

func (t *TaskManager) record(l *zap.Logger, o Outcome) {
	t.resMu.Lock()
	defer t.resMu.Unlock()
	if o.Succeeded() {
		t.result.Succeeded++
		t.result.Bytes += o.Bytes
		return
	}
	t.result.Failed++
	t.result.Failures = append(t.result.Failures, Failure{ResourceID: o.ResourceID, ObjectID: o.ObjectID, Err: o.Err})
	l.Warn("resource migration failed", zap.String("resource", o.ResourceID), zap.Error(o.Err))
}

func (t *TaskManager) drop(r model.Resource) {
	t.metrics.Dropped(1)
	t.resMu.Lock()
	defer t.resMu.Unlock()
	t.result.Dropped++
	t.l.Debug("dropped queued task", zap.String("resource", r.ID))
}
