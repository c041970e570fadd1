// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// The worker pool manages a fixed number of goroutines that process work
// items from a bounded channel, with:
//   - Generic type support for type-safe work processing
//   - Bounded queues with backpressure (non-blocking submit)
//   - Context-aware cancellation and graceful shutdown
//   - Always-on statistics via Stats()
//
// # Ingestion daemon usage
//
// The daemon (cmd/traceprocd) binds T to an input file path, one job
// per trace file: the pool's worker count is the only concurrency the
// daemon introduces, since one file's C1-C7 pipeline is single-threaded.
//
//	pool := worker.NewPool[string](
//	    cfg.WorkerConcurrency,
//	    len(files),
//	    func(ctx context.Context, path string) error {
//	        return ingestFile(ctx, path)
//	    },
//	)
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	for _, f := range files {
//	    if err := pool.Submit(f); err != nil {
//	        return err
//	    }
//	}
//	return pool.Stop(30 * time.Second)
//
// # Backpressure
//
// Submit is non-blocking: a full queue returns ErrQueueFull rather
// than blocking the caller. Callers who need every item accepted
// should size the queue to at least the number of items they intend
// to submit, as the daemon does (queue size == file count).
package worker
