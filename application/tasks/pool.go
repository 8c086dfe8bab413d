// Package tasks runs detached background work, mainly the tier
// backfills the coordinator fans out after a response is written.
// Task errors are logged and swallowed.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of detached work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool is a bounded worker pool. Submit never blocks the caller: when
// the queue is full the task is dropped with a warning, since backfills
// are best-effort by contract.
type Pool struct {
	logger  *zap.Logger
	queue   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines draining a queue of the given
// capacity. timeout bounds each task's execution.
func NewPool(logger *zap.Logger, workers, capacity int, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger:  logger,
		queue:   make(chan Task, capacity),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
	for n := 0; n < workers; n++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a task. Returns false when the pool is shut down or
// the queue is full.
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- task:
		return true
	default:
		p.logger.Warn("background task dropped, queue full", zap.String("task", task.Name))
		return false
	}
}

// Shutdown stops accepting tasks, drains the queue and waits for the
// workers, honoring ctx for the wait.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background task panicked",
				zap.String("task", task.Name), zap.Any("panic", r))
		}
	}()
	if err := task.Run(ctx); err != nil {
		p.logger.Warn("background task failed",
			zap.String("task", task.Name), zap.Error(err))
	}
}
