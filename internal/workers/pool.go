package workers

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"imgdb/internal/logging"
	"imgdb/internal/metrics"
)

// Func computes one unit of work. It must not touch shared mutable state.
type Func[J, R any] func(ctx context.Context, job J) (R, error)

// Result carries the outcome of one job back to the coordinator.
type Result[J, R any] struct {
	Job      J
	Value    R
	Err      error
	Duration time.Duration
}

// Pool runs a Func over a fixed number of workers fed from a bounded queue.
type Pool[J, R any] struct {
	size int
	fn   Func[J, R]
}

// NewPool creates a pool with size workers. A size below 1 is treated as 1.
func NewPool[J, R any](size int, fn Func[J, R]) *Pool[J, R] {
	if size < 1 {
		size = 1
	}
	return &Pool[J, R]{size: size, fn: fn}
}

// Size returns the number of workers.
func (p *Pool[J, R]) Size() int {
	return p.size
}

// Run dispatches jobs to the workers and returns the result stream.
//
// Results arrive in completion order. The channel is closed once every
// worker has exited, so callers must drain it. When ctx is cancelled the
// dispatcher stops queueing, queued-but-unstarted jobs are dropped, and jobs
// already running finish and still deliver their result.
func (p *Pool[J, R]) Run(ctx context.Context, jobs []J) <-chan Result[J, R] {
	queue := make(chan J, p.size*2)
	results := make(chan Result[J, R], p.size)

	metrics.WorkerPoolSize.Set(float64(p.size))

	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				logging.Debug("Dispatch stopped: %v", ctx.Err())
				return
			}
		}
	}()

	var g errgroup.Group
	for i := 0; i < p.size; i++ {
		id := i
		g.Go(func() error {
			p.worker(ctx, id, queue, results)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	return results
}

// worker processes jobs from the queue until it is closed or ctx is done
func (p *Pool[J, R]) worker(ctx context.Context, id int, queue <-chan J, results chan<- Result[J, R]) {
	logging.Debug("Worker %d started", id)
	defer logging.Debug("Worker %d finished", id)

	for job := range queue {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		value, err := p.fn(ctx, job)
		results <- Result[J, R]{
			Job:      job,
			Value:    value,
			Err:      err,
			Duration: time.Since(start),
		}
	}
}
