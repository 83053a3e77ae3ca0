// Package worker runs matchers over queued image pairs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/kidnapped/internal/adapters/matcher"
	"github.com/okian/kidnapped/internal/adapters/mq/queue"
	"github.com/okian/kidnapped/pkg/logger"
	"github.com/okian/kidnapped/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Outcome is the scored result of one job.
type Outcome struct {
	Index  int
	Result matcher.Result
	Err    error
}

// Worker processes jobs until its queue drains or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for it to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker scores jobs with a matcher and reports each outcome.
type InMemoryWorker struct {
	queue       Queue
	matcher     matcher.Matcher
	results     chan<- Outcome
	name        string
	matcherName string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, m matcher.Matcher, results chan<- Outcome, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		matcher:     m,
		results:     results,
		name:        "worker",
		matcherName: "unnamed",
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}

			out := w.process(ctx, j)
			select {
			case w.results <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) Outcome {
	start := time.Now()
	res, err := w.matcher.Match(ctx, j.Img0, j.Img1)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		metrics.RecordMatcherError(w.matcherName)
		metrics.RecordErrorByComponent("worker", "match_error")
		w.logger.Error(ctx, "matching failed",
			logger.Int("index", j.Index),
			logger.String("img0", j.Img0),
			logger.String("img1", j.Img1),
			logger.Error(err),
		)
		return Outcome{Index: j.Index, Err: fmt.Errorf("pair %d: %w", j.Index, err)}
	}

	metrics.RecordPairMatched(w.matcherName, latency)
	return Outcome{Index: j.Index, Result: res}
}

// Pool manages multiple workers sharing one queue and one result stream.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	results chan Outcome

	logger logger.Logger
}

// NewPool creates a worker pool. workerCount < 1 means one worker per CPU.
func NewPool(workerCount int, q Queue, m matcher.Matcher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		results: make(chan Outcome, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, m, pool.results, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Collect reads n outcomes and returns the results ordered by job index.
// It stops at the first failed job.
func (p *Pool) Collect(ctx context.Context, n int) ([]matcher.Result, error) {
	out := make([]matcher.Result, n)
	for got := 0; got < n; got++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case o := <-p.results:
			if o.Err != nil {
				return nil, o.Err
			}
			if o.Index < 0 || o.Index >= n {
				return nil, fmt.Errorf("job index %d outside [0,%d)", o.Index, n)
			}
			out[o.Index] = o.Result
		}
	}
	return out, nil
}

// Shutdown closes the queue, signals every worker and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = true
		}
	}

	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}

// Score runs m over pairs with a fresh queue and pool, returning one result
// per pair in input order. The first matcher error cancels the run.
func Score(ctx context.Context, m matcher.Matcher, jobs []queue.Job, workerCount, queueSize int, opts ...Option) ([]matcher.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(queueSize))
	pool := NewPool(workerCount, q, m, opts...)
	pool.Start(ctx)
	defer func() { _ = pool.Shutdown(context.WithoutCancel(ctx)) }()

	go func() {
		for _, j := range jobs {
			if err := q.Put(ctx, j); err != nil {
				return
			}
		}
	}()

	results, err := pool.Collect(ctx, len(jobs))
	cancel()
	return results, err
}
