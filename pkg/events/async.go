package events

import (
	"context"
	"time"

	"github.com/geoguard/geoguard/pkg/async"
	"github.com/geoguard/geoguard/pkg/observability"
)

// AsyncPublisher hands events to another Publisher on a worker pool so a
// slow broker never delays the flow that raised them. Events that do not
// fit in the queue are dropped and logged.
type AsyncPublisher struct {
	next   Publisher
	pool   *async.WorkerPool
	logger *observability.Logger
	drain  time.Duration
}

// AsyncConfig sizes an AsyncPublisher
type AsyncConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per publish
	Drain     time.Duration // how long Close waits for queued events
}

// DefaultAsyncConfig returns the sizing used by the server
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{Workers: 4, QueueSize: 1024, Timeout: 5 * time.Second, Drain: 10 * time.Second}
}

// NewAsyncPublisher wraps next
func NewAsyncPublisher(next Publisher, cfg AsyncConfig, logger *observability.Logger) *AsyncPublisher {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AsyncPublisher{
		next:   next,
		pool:   async.NewWorkerPool("events", cfg.Workers, cfg.QueueSize, cfg.Timeout, logger),
		logger: logger,
		drain:  cfg.Drain,
	}
}

// Publish queues event. The caller's context is not carried over because
// the request usually ends before delivery.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	err := p.pool.Submit(func(ctx context.Context) error {
		return p.next.Publish(ctx, event)
	})
	if err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		}).Warn("Dropping domain event")
	}
	return err
}

// Close drains the queue, then closes the wrapped publisher
func (p *AsyncPublisher) Close() error {
	drainErr := p.pool.Shutdown(p.drain)
	if err := p.next.Close(); err != nil {
		return err
	}
	return drainErr
}
