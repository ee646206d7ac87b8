package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolClosed is returned by Submit once Shutdown has begun.
var ErrPoolClosed = errors.New("worker pool closed")

// PoolOptions sizes a Pool.
type PoolOptions struct {
	MinWorkers  int
	MaxWorkers  int
	IdleTimeout time.Duration
}

// Pool runs tasks on between MinWorkers and MaxWorkers goroutines. Tasks that
// arrive while every worker is busy wait in an unbounded FIFO backlog.
type Pool[T any] struct {
	opts PoolOptions
	run  func(ctx context.Context, task T)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	backlog     []T
	workers     int
	idleWorkers int
	started     bool
	closed      bool

	inFlight atomic.Int64
	forced   atomic.Bool

	notify chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewPool builds a Pool that hands each task to run. Out of range options are
// clamped: at least one worker, MinWorkers <= MaxWorkers, and a positive idle timeout.
func NewPool[T any](opts PoolOptions, run func(ctx context.Context, task T)) *Pool[T] {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.MinWorkers < 0 {
		opts.MinWorkers = 0
	}
	if opts.MinWorkers > opts.MaxWorkers {
		opts.MinWorkers = opts.MaxWorkers
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool[T]{
		opts:   opts,
		run:    run,
		ctx:    ctx,
		cancel: cancel,
		notify: make(chan struct{}, opts.MaxWorkers),
		quit:   make(chan struct{}),
	}
}

// Start prestarts MinWorkers workers. Calling it again has no effect.
func (p *Pool[T]) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for p.workers < p.opts.MinWorkers {
		p.spawnLocked()
	}
}

// Submit accepts task for execution.
func (p *Pool[T]) Submit(task T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.backlog = append(p.backlog, task)
	p.inFlight.Add(1)
	if p.idleWorkers > 0 {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
	if len(p.backlog) > p.idleWorkers && p.workers < p.opts.MaxWorkers {
		p.spawnLocked()
	}
	return nil
}

// InFlight counts accepted tasks that have not finished, queued or running.
func (p *Pool[T]) InFlight() int {
	return int(p.inFlight.Load())
}

// Available is MaxWorkers minus InFlight. It can go negative while a backlog exists.
func (p *Pool[T]) Available() int {
	return p.opts.MaxWorkers - p.InFlight()
}

// Workers reports the current number of worker goroutines.
func (p *Pool[T]) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Forced reports whether Shutdown gave up waiting and cancelled running tasks.
func (p *Pool[T]) Forced() bool {
	return p.forced.Load()
}

// Shutdown stops accepting tasks and lets the backlog drain for up to grace.
// If the workers are still busy after grace, the task context is cancelled and
// tasks that never started are removed and returned. drained is true when
// every accepted task finished in time.
func (p *Pool[T]) Shutdown(grace time.Duration) (abandoned []T, drained bool) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.quit)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		p.cancel()
		return nil, true
	case <-timer.C:
	}

	p.forced.Store(true)
	p.cancel()

	p.mu.Lock()
	abandoned = p.backlog
	p.backlog = nil
	p.inFlight.Add(-int64(len(abandoned)))
	p.mu.Unlock()
	return abandoned, false
}

func (p *Pool[T]) spawnLocked() {
	p.workers++
	p.wg.Add(1)
	go p.worker()
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.execute(task)
	}
}

func (p *Pool[T]) execute(task T) {
	defer p.inFlight.Add(-1)
	p.run(p.ctx, task)
}

// next blocks until a task is available. It returns false when the worker
// should exit: the pool closed with nothing left to drain, or the worker sat
// idle past the timeout while more than MinWorkers were alive.
func (p *Pool[T]) next() (T, bool) {
	var zero T
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.backlog) == 0 {
		if p.closed {
			p.workers--
			return zero, false
		}
		p.idleWorkers++
		p.mu.Unlock()

		timedOut := false
		timer := time.NewTimer(p.opts.IdleTimeout)
		select {
		case <-p.notify:
		case <-p.quit:
		case <-timer.C:
			timedOut = true
		}
		timer.Stop()

		p.mu.Lock()
		p.idleWorkers--
		if timedOut && len(p.backlog) == 0 && p.workers > p.opts.MinWorkers {
			p.workers--
			return zero, false
		}
	}
	task := p.backlog[0]
	var empty T
	p.backlog[0] = empty
	p.backlog = p.backlog[1:]
	return task, true
}
