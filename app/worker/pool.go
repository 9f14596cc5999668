package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/factory"
)

var (
	ErrQueueFull   = errors.New("worker queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

type Job struct {
	Name   string
	Fields logrus.Fields
	Run    func(ctx context.Context)
}

// Pool runs submitted jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	workers int
	timeout time.Duration
	logger  logrus.FieldLogger

	mu      sync.RWMutex
	jobs    chan Job
	stopped bool
	started bool
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers: workers,
		timeout: timeout,
		logger:  factory.NewModuleLogger("worker-pool"),
		jobs:    make(chan Job, queueSize),
	}
}

func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
}

// Submit enqueues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new jobs and waits for queued ones to finish or for ctx to expire. A pool that was
// never started runs its queue on the calling goroutine.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	if !started {
		return p.drain(ctx)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) drain(ctx context.Context) error {
	for job := range p.jobs {
		if err := ctx.Err(); err != nil {
			p.logger.WithField("discarded", len(p.jobs)+1).Warn("queued jobs discarded, pool was never started")
			return err
		}
		p.run(0, job)
	}
	return nil
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	logger := p.logger.WithField("worker", id).WithField("job", job.Name)
	if len(job.Fields) > 0 {
		logger = logger.WithFields(job.Fields)
	}

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("job panicked")
		}
	}()

	start := time.Now()
	job.Run(ctx)
	logger.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("job finished")
}
