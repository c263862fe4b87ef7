// Package worker runs enrichment tasks off the queue with a fixed pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pitscout/internal/adapters/mq/queue"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
)

const defaultTaskTimeout = 10 * time.Second

// Task is what workers read off the queue.
type Task = queue.Task

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Handler processes one task. A returned error is logged and counted; the
// handler owns any cleanup the failure needs.
type Handler interface {
	Handle(ctx context.Context, t Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Task) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t Task) error { return f(ctx, t) }

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	name        string
	size        int
	queue       Queue
	handler     Handler
	taskTimeout time.Duration
	logger      logger.Logger

	active    atomic.Int32
	processed atomic.Int64
	failed    atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates a pool of size workers. A size below one uses runtime.NumCPU.
func NewPool(size int, q Queue, h Handler, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		name:        "enrich",
		size:        size,
		queue:       q,
		handler:     h,
		taskTimeout: defaultTaskTimeout,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("worker-pool").With(logger.String("pool", p.name))
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Processed returns the number of tasks handled successfully.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of tasks whose handler returned an error.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Start launches the workers. They stop when ctx is done, Stop is called, or
// the queue is closed and drained.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, "worker-"+strconv.Itoa(i))
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", p.size))
}

func (p *Pool) run(ctx context.Context, name string) {
	defer p.wg.Done()
	metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
	defer func() { metrics.UpdateWorkerActiveCount(int(p.active.Add(-1))) }()

	for t := range p.queue.Dequeue(ctx) {
		if err := p.process(ctx, t); err != nil {
			p.logger.Warn(ctx, "task failed",
				logger.String("worker", name),
				logger.String("subject", t.SubjectKey),
				logger.Error(err))
		}
	}
}

func (p *Pool) process(ctx context.Context, t Task) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			p.failed.Add(1)
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "task_error")
			return
		}
		p.processed.Add(1)
	}()

	taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()
	return p.handler.Handle(taskCtx, t)
}

// Shutdown waits for the workers to drain the queue. If ctx ends first the
// remaining tasks are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.Stop()
		return nil
	case <-ctx.Done():
		p.Stop()
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// Stop cancels the workers without draining.
func (p *Pool) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
}
