package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const (
	defaultWorkers    = 4
	defaultQueueSize  = 64
	defaultJobTimeout = 2 * time.Minute
)

// Pool executes jobs on a fixed set of workers. It implements Sink:
// the orchestrator enqueues, workers drain. Jobs are independent; a
// failed job only logs.
type Pool struct {
	runner     *Runner
	logger     *log.Logger
	jobs       chan Job
	workers    int
	jobTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPool constructs a stopped pool; call Start to spin up workers.
func NewPool(runner *Runner, logger *log.Logger, opts ...PoolOption) (*Pool, error) {
	if runner == nil {
		return nil, errors.New("dispatch pool: nil runner")
	}
	if logger == nil {
		return nil, errors.New("dispatch pool: nil logger")
	}
	p := &Pool{
		runner:     runner,
		logger:     logger,
		workers:    defaultWorkers,
		jobTimeout: defaultJobTimeout,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs = make(chan Job, defaultQueueSize)
	return p, nil
}

// PoolOption configures the pool.
type PoolOption func(*Pool)

// WithWorkers sets the worker count.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithJobTimeout bounds a single job's execution time.
func WithJobTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

// Start launches the workers. Idempotent.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Enqueue hands a job to the pool, blocking while the queue is full so
// dispatch cycles apply natural backpressure instead of dropping work.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-p.done:
		return errors.New("dispatch pool: stopped")
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Stop tells workers to drain the queue and waits for them. The jobs
// channel is never closed, so a racing Enqueue can't panic; it either
// lands in the buffer and gets drained or observes done and errors.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.run(id, job)
		case <-p.done:
			for {
				select {
				case job := <-p.jobs:
					p.run(id, job)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(id int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()
	if err := p.runner.Execute(ctx, job); err != nil {
		p.logger.Printf("dispatch: worker=%d job=%s: %v", id, job.ID, err)
	}
}
