// Package worker runs background tasks on a fixed pool and periodic jobs on a cron schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
)

var (
	// ErrQueueFull is returned by Enqueue when the bounded queue has no room.
	ErrQueueFull = errors.New("worker: queue full")
	// ErrPoolStopped is returned by Enqueue once the pool is shutting down.
	ErrPoolStopped = errors.New("worker: pool stopped")
)

// Task is a unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool drains a bounded queue with a fixed number of goroutines.
type Pool struct {
	tasks   chan Task
	workers int
	logger  *zap.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	stopped bool
}

// NewPool sizes the pool. Run starts the workers.
func NewPool(workers, queueSize int, logger *zap.Logger, metrics *observability.Metrics) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		logger:  logger,
		metrics: metrics,
	}
}

// Enqueue adds a task without blocking.
func (p *Pool) Enqueue(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- task:
		p.metrics.SetQueueDepth(len(p.tasks))
		return nil
	default:
		p.metrics.RecordTaskRejected()
		return ErrQueueFull
	}
}

// Run processes tasks until ctx is cancelled, then waits for in-flight tasks.
// Tasks still queued at shutdown are dropped; persisted jobs are re-enqueued on the next start.
func (p *Pool) Run(ctx context.Context) error {
	// in-flight tasks finish even though ctx is done
	runCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-p.tasks:
					p.metrics.SetQueueDepth(len(p.tasks))
					p.execute(runCtx, id, task)
				}
			}
		}(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.tasks)))

	<-ctx.Done()
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	wg.Wait()
	if dropped := len(p.tasks); dropped > 0 {
		p.logger.Warn("worker pool stopped with queued tasks", zap.Int("dropped", dropped))
	}
	p.logger.Info("worker pool stopped")
	return nil
}

func (p *Pool) execute(ctx context.Context, workerID int, task Task) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		p.metrics.RecordJob(task.Name, err, time.Since(start))
		if err != nil {
			p.logger.Error("task failed", zap.String("task", task.Name), zap.Int("worker", workerID), zap.Error(err))
			return
		}
		p.logger.Debug("task finished", zap.String("task", task.Name), zap.Duration("duration", time.Since(start)))
	}()
	err = task.Run(ctx)
}
