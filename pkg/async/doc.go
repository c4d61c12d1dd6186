// Package async runs background work off the request path.
//
// WorkerPool has a fixed number of workers and a bounded queue. Submit never
// blocks: a full queue is reported as ErrPoolFull so callers can drop or
// retry. Each task runs under its own timeout and a panic in one task is
// logged without taking down the worker.
//
//	pool := async.NewWorkerPool("events", 4, 256, 5*time.Second, logger)
//	defer pool.Shutdown(10 * time.Second)
//
//	if err := pool.Submit(func(ctx context.Context) error {
//		return publisher.Publish(ctx, event)
//	}); err != nil {
//		logger.WithError(err).Warn("event dropped")
//	}
package async
