package worker

import (
	"context"
	"errors"

	"codeberg.org/vestilook/server/internal/logger"
	"golang.org/x/sync/errgroup"
)

var ErrQueueClosed = errors.New("queue is closed")

// creates an in-process queue holding up to size pending ids, drained by
// concurrency workers
func NewMemoryQueue(size, concurrency int) *MemoryQueue {
	return &MemoryQueue{
		ids:         make(chan string, max(size, 1)),
		concurrency: max(concurrency, 1),
		closed:      make(chan struct{}),
	}
}

// enqueues a job id, blocking while the queue is full
func (q *MemoryQueue) Dispatch(ctx context.Context, jobID string) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ids <- jobID:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processes ids until ctx is cancelled or the queue is closed. handler
// errors are logged; the worker moves on to the next id.
func (q *MemoryQueue) Run(ctx context.Context, handle Handler) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-q.closed:
					return nil
				case id := <-q.ids:
					runHandler(ctx, handle, id)
				}
			}
		})
	}

	return g.Wait()
}

// stops accepting ids and lets running workers exit
func (q *MemoryQueue) Close() error {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}

	return nil
}

// Len reports how many ids are waiting
func (q *MemoryQueue) Len() int {
	return len(q.ids)
}

func runHandler(ctx context.Context, handle Handler, id string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("generation handler panicked", "job_id", id, "panic", r)
		}
	}()

	if err := handle(ctx, id); err != nil {
		logger.ErrorErr(err, "failed to process generation", "job_id", id)
	}
}
