package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pool runs a Handler on a fixed number of workers fed by a bounded channel.
// Outcomes are delivered on Results, which is closed once every worker has exited.
type Pool[T, R any] struct {
	handle Handler[T, R]
	logger *slog.Logger
	base   context.Context

	workers   int
	queueSize int
	timeout   time.Duration

	ch      chan Job[T]
	results chan Outcome[T, R]
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.RWMutex
	closed bool
}

type settings struct {
	workers   int
	queueSize int
	timeout   time.Duration
}

type Option func(*settings)

func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithProcessTimeout bounds each handler call. Zero leaves calls bounded only by the pool context.
func WithProcessTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewPool starts the workers. Cancelling ctx stops new jobs from running: queued jobs are
// reported as skipped and running handlers see the cancellation through their context.
func NewPool[T, R any](ctx context.Context, handle Handler[T, R], logger *slog.Logger, opts ...Option) *Pool[T, R] {
	s := settings{workers: 2, queueSize: 64}
	for _, o := range opts {
		o(&s)
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool[T, R]{
		handle:    handle,
		logger:    logger,
		base:      ctx,
		workers:   s.workers,
		queueSize: s.queueSize,
		timeout:   s.timeout,
		ch:        make(chan Job[T], s.queueSize),
		results:   make(chan Outcome[T, R], s.queueSize),
	}
	p.start()
	return p
}

func (p *Pool[T, R]) Workers() int { return p.workers }

// Results must be drained by the caller, otherwise workers block once the buffer fills.
func (p *Pool[T, R]) Results() <-chan Outcome[T, R] { return p.results }

func (p *Pool[T, R]) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.work(i + 1)
		}
		go func() {
			p.wg.Wait()
			close(p.results)
		}()
	})
}

func (p *Pool[T, R]) work(workerID int) {
	defer p.wg.Done()
	p.logger.Debug("async.worker.start", "worker_id", workerID)

	for job := range p.ch {
		if err := p.base.Err(); err != nil {
			p.results <- Outcome[T, R]{Job: job, Err: err, Skipped: true}
			continue
		}

		ctx, cancel := p.base, context.CancelFunc(func() {})
		if p.timeout > 0 {
			ctx, cancel = context.WithTimeout(p.base, p.timeout)
		}
		start := time.Now()
		res, err := p.handle(ctx, job)
		cancel()

		out := Outcome[T, R]{Job: job, Result: res, Err: err, Elapsed: time.Since(start)}
		if err != nil {
			p.logger.Warn("async.job.failed", "worker_id", workerID, "job_id", job.ID, "elapsed_ms", out.Elapsed.Milliseconds(), "error", err)
		} else {
			p.logger.Debug("async.job.ok", "worker_id", workerID, "job_id", job.ID, "elapsed_ms", out.Elapsed.Milliseconds())
		}
		p.results <- out
	}

	p.logger.Debug("async.worker.stop", "worker_id", workerID)
}

// Enqueue blocks while the queue is full, until ctx is done.
func (p *Pool[T, R]) Enqueue(ctx context.Context, job Job[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("async.enqueue.closed", "job_id", job.ID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case p.ch <- job:
		return nil
	default:
	}
	p.logger.Debug("async.enqueue.backpressure", "job_id", job.ID, "queue_size", p.queueSize)
	select {
	case p.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain, or for ctx to end.
func (p *Pool[T, R]) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("async.shutdown.interrupted")
	case <-done:
		p.logger.Debug("async.shutdown.drained")
	}
}
