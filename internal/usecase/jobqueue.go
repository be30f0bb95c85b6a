// Package usecase contains application business logic.
package usecase

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/domain"
)

func errPackageNotInstalled(pkg string) error {
	return fmt.Errorf("package %q is not installed", pkg)
}

// JobQueueImpl executes mutation jobs on a background worker pool. Intake is
// unbounded: Enqueue appends to an in-memory list and returns immediately, so
// a hung engine hook stalls only the worker running it, never the caller.
// Job outcomes are terminal and only logged. No ordering is guaranteed
// between jobs - deny-list mutations are commutative and idempotent, so last
// committed wins.
type JobQueueImpl struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []domain.Job
	closed  bool
	wg      sync.WaitGroup

	store    domain.DenyListRepository
	packages domain.PackageRegistry
	engine   domain.EngineController
	logger   *zap.Logger
}

// NewJobQueue creates a queue and starts its workers.
func NewJobQueue(
	workers int,
	store domain.DenyListRepository,
	packages domain.PackageRegistry,
	engine domain.EngineController,
	logger *zap.Logger,
) *JobQueueImpl {
	if workers < 1 {
		workers = 1
	}

	q := &JobQueueImpl{
		store:    store,
		packages: packages,
		engine:   engine,
		logger:   logger,
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

// Enqueue hands a job to the worker pool and returns without waiting for a
// worker to pick it up; execution happens later and its outcome is not
// reported back. Jobs enqueued after Close are dropped with a log entry.
func (q *JobQueueImpl) Enqueue(job domain.Job) {
	job.State = domain.JobEnqueued

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("dropping job, queue closed", zap.String("kind", job.Kind.String()))
		return
	}

	q.pending = append(q.pending, job)
	q.cond.Signal()
}

// Close stops intake, runs every already-accepted job, and waits for the
// workers to finish. Safe to call more than once.
func (q *JobQueueImpl) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *JobQueueImpl) worker() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.execute(job)
	}
}

// execute runs a single job to its terminal state. Failures are logged,
// never retried, never surfaced to the enqueuer.
func (q *JobQueueImpl) execute(job domain.Job) {
	var err error
	switch job.Kind {
	case domain.JobStartVPN:
		err = q.engine.Connect()

	case domain.JobStopVPN:
		err = q.engine.Disconnect()

	case domain.JobSetExitNode:
		err = q.engine.SetExitNode(job.NodeID, job.AllowLANAccess)

	case domain.JobMutateDenyList:
		err = q.mutateDenyList(job)
	}

	job.State = domain.JobSucceeded
	log := q.logger.Info
	if err != nil {
		job.State = domain.JobFailed
		log = q.logger.Warn
	}
	log("job finished",
		zap.String("kind", job.Kind.String()),
		zap.String("state", job.State.String()),
		zap.Error(err))
}

// mutateDenyList applies one deny-list mutation: verify (adds only), commit
// to the store, then request an engine restart so the rule applies on the
// next connection. A failed restart does not revert the commit - the store
// is the source of truth.
func (q *JobQueueImpl) mutateDenyList(job domain.Job) error {
	switch job.Direction {
	case domain.DenyListAdd:
		if !q.packages.IsInstalled(job.Package) {
			q.logger.Warn("package not installed, skipping deny-list add",
				zap.String("package", job.Package))
			return errPackageNotInstalled(job.Package)
		}
		if err := q.store.Add(job.Package); err != nil {
			return err
		}
		q.logger.Info("added package to deny list", zap.String("package", job.Package))

	case domain.DenyListRemove:
		// No existence check: removing an uninstalled package is harmless.
		if err := q.store.Remove(job.Package); err != nil {
			return err
		}
		q.logger.Info("removed package from deny list", zap.String("package", job.Package))
	}

	if err := q.engine.Restart(); err != nil {
		// Best-effort: the committed list takes effect on the next cycle.
		q.logger.Warn("engine restart failed after deny-list change",
			zap.String("package", job.Package),
			zap.Error(err))
	}
	return nil
}

// Ensure JobQueueImpl implements domain.JobQueue.
var _ domain.JobQueue = (*JobQueueImpl)(nil)
