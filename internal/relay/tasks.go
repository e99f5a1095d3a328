package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/infrastructure/logger"
)

// TaskRunner executes deferred-but-guaranteed background work: the
// response path never waits on a task, but every submitted task runs
// to completion (or failure) before Shutdown returns. Failures are
// caught and logged, never retried here; the relay's at-least-once
// delivery is the retry boundary.
type TaskRunner struct {
	tasks       chan task
	wg          sync.WaitGroup
	taskTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// NewTaskRunner starts workers pulling from a bounded queue.
func NewTaskRunner(workers, queueSize int, taskTimeout time.Duration) *TaskRunner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Second
	}

	r := &TaskRunner{
		tasks:       make(chan task, queueSize),
		taskTimeout: taskTimeout,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit enqueues a task. It never blocks the caller: when the queue
// is full the task is dropped with an error log, which is the only
// condition under which "guaranteed" is traded away.
func (r *TaskRunner) Submit(name string, fn func(ctx context.Context) error) {
	// The mutex stays held across the send so Shutdown cannot close
	// the channel between the closed check and the enqueue. The send
	// is non-blocking, so the lock is never held for long.
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		logger.Error("task submitted after shutdown, dropped", zap.String("task", name))
		return
	}

	select {
	case r.tasks <- task{name: name, fn: fn}:
	default:
		logger.Error("task queue full, task dropped", zap.String("task", name))
	}
}

// Shutdown stops accepting tasks and waits for the queue to drain.
func (r *TaskRunner) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *TaskRunner) worker() {
	defer r.wg.Done()
	for t := range r.tasks {
		r.run(t)
	}
}

func (r *TaskRunner) run(t task) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("deferred task panicked",
				zap.String("task", t.name), zap.Any("panic", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.taskTimeout)
	defer cancel()

	if err := t.fn(ctx); err != nil {
		logger.Warn("deferred task failed",
			zap.String("task", t.name), zap.Error(err))
	}
}
