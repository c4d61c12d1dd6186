package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geoguard/geoguard/pkg/observability"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown
	ErrPoolClosed = errors.New("worker pool shut down")
	// ErrPoolFull is returned by Submit when the queue has no room
	ErrPoolFull = errors.New("worker pool queue full")
)

// Task is a unit of background work
type Task func(ctx context.Context) error

// WorkerPool runs tasks on a fixed number of goroutines. Each task gets its
// own timeout; panics and errors are logged, never propagated.
type WorkerPool struct {
	name    string
	timeout time.Duration
	logger  *observability.Logger

	mu     sync.RWMutex
	closed bool
	workCh chan Task
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool starts workers goroutines reading from a queue of queueSize
func NewWorkerPool(name string, workers, queueSize int, timeout time.Duration, logger *observability.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &WorkerPool{
		name:    name,
		timeout: timeout,
		logger:  logger.WithField("pool", name),
		workCh:  make(chan Task, queueSize),
		doneCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(id)
		}(i)
	}
	go func() {
		wg.Wait()
		close(p.doneCh)
	}()
	return p
}

// Submit queues a task without blocking
func (p *WorkerPool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.workCh <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the queue to
// drain. Tasks still running at the deadline see their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.doneCh
		return nil
	}
	p.closed = true
	close(p.workCh)
	p.mu.Unlock()

	defer p.cancel()
	select {
	case <-p.doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s pool shutdown timed out after %v", p.name, timeout)
	}
}

func (p *WorkerPool) worker(id int) {
	for task := range p.workCh {
		p.run(id, task)
	}
}

func (p *WorkerPool) run(id int, task Task) {
	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer observability.RecoverPanic(p.logger.WithField("worker", id), p.name)

	if err := task(ctx); err != nil {
		p.logger.WithError(err).WithField("worker", id).Warn("Task failed")
	}
}
