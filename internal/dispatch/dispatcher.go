package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"localqueue/internal/config"
	"localqueue/internal/logging"
	"localqueue/internal/metrics"
	"localqueue/internal/queue"
)

// ErrStopped is returned by Submit when the dispatcher is not running. The
// item stays ACTIVATING until the next restart resets it to PENDING.
var ErrStopped = errors.New("dispatcher is not running")

// ItemQueue is the subset of queue.Manager the dispatcher drives.
type ItemQueue interface {
	SetProcessing(ctx context.Context, item queue.WorkItem) error
	Clear(ctx context.Context, item queue.WorkItem) error
}

// Options sizes the worker pool and bounds shutdown.
type Options struct {
	MinWorkers    int
	MaxWorkers    int
	IdleTimeout   time.Duration
	ShutdownGrace time.Duration
}

// OptionsFromConfig reads the executor settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinWorkers:    cfg.Queue.ExecutorMinThreads,
		MaxWorkers:    cfg.Queue.ExecutorMaxThreads,
		IdleTimeout:   cfg.ExecutorIdleTimeout(),
		ShutdownGrace: cfg.ShutdownGrace(),
	}
}

// Dispatcher runs claimed work items on a bounded pool of workers.
type Dispatcher struct {
	opts     Options
	queue    ItemQueue
	handlers map[string]Handler
	recorder *metrics.Recorder
	logger   *slog.Logger

	lifecycle sync.Mutex
	pool      atomic.Pointer[Pool[queue.WorkItem]]
}

// New builds a stopped Dispatcher. The registry is copied; later
// registrations are not seen.
func New(opts Options, q ItemQueue, registry *Registry, recorder *metrics.Recorder, logger *slog.Logger) *Dispatcher {
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 15 * time.Second
	}
	return &Dispatcher{
		opts:     opts,
		queue:    q,
		handlers: registry.snapshot(),
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "dispatcher"),
	}
}

// Start prestarts the minimum number of workers. It is a no-op when running.
func (d *Dispatcher) Start() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	if d.pool.Load() != nil {
		return
	}
	pool := NewPool(PoolOptions{
		MinWorkers:  d.opts.MinWorkers,
		MaxWorkers:  d.opts.MaxWorkers,
		IdleTimeout: d.opts.IdleTimeout,
	}, d.execute)
	pool.Start()
	d.pool.Store(pool)
	d.logger.Info("dispatcher started",
		logging.Int("min_workers", d.opts.MinWorkers),
		logging.Int("max_workers", d.opts.MaxWorkers),
	)
}

// Stop refuses new work and waits up to the shutdown grace for accepted work
// to finish. After that, handler contexts are cancelled and items that never
// started are left in the store for recovery. Stop is a no-op when stopped.
func (d *Dispatcher) Stop() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	pool := d.pool.Load()
	if pool == nil {
		return
	}
	d.logger.Info("stopping dispatcher", logging.Int("in_flight", pool.InFlight()))
	abandoned, drained := pool.Shutdown(d.opts.ShutdownGrace)
	d.pool.Store(nil)
	if drained {
		d.logger.Info("dispatcher stopped")
		return
	}
	logging.WarnWithContext(d.logger, "dispatcher shutdown grace exceeded; cancelling running handlers", "shutdown_timeout",
		logging.Duration("grace", d.opts.ShutdownGrace),
		logging.Int("abandoned", len(abandoned)),
		logging.String(logging.FieldErrorHint, "abandoned items are reset to PENDING on next start"),
	)
	for _, item := range abandoned {
		d.logger.Warn("work item abandoned at shutdown",
			logging.String(logging.FieldWorkType, item.WorkType),
			logging.Int64(logging.FieldFingerprint, item.Fingerprint),
			logging.String(logging.FieldEventType, "shutdown_abandoned"),
		)
	}
}

// Running reports whether Start has been called without a matching Stop.
func (d *Dispatcher) Running() bool {
	return d.pool.Load() != nil
}

// AvailableCapacity is the number of additional items the dispatcher can take
// without queueing. It is read without coordination with Submit; a caller that
// checks capacity and then submits may overshoot when racing another caller.
func (d *Dispatcher) AvailableCapacity() int {
	pool := d.pool.Load()
	if pool == nil {
		return 0
	}
	return pool.Available()
}

// WorkTypes lists the work types this dispatcher can handle.
func (d *Dispatcher) WorkTypes() []string {
	r := &Registry{handlers: d.handlers}
	return r.WorkTypes()
}

// Submit hands item to a worker. Items with no registered handler are deleted
// immediately and Submit returns nil.
func (d *Dispatcher) Submit(ctx context.Context, item queue.WorkItem) error {
	return d.recorder.Time(ctx, metrics.OpDispatcherSubmit, item.WorkType, func() error {
		if _, ok := d.handlers[item.WorkType]; !ok {
			logging.ErrorWithContext(d.logger, "no handler registered for work type", "missing_handler",
				logging.String(logging.FieldWorkType, item.WorkType),
				logging.Int64(logging.FieldFingerprint, item.Fingerprint),
				logging.String(logging.FieldErrorHint, "register a handler or add a [[handlers]] entry"),
			)
			if err := d.queue.Clear(ctx, item); err != nil {
				return fmt.Errorf("clear unhandled item %d: %w", item.Fingerprint, err)
			}
			return nil
		}
		pool := d.pool.Load()
		if pool == nil {
			return ErrStopped
		}
		if err := pool.Submit(item); err != nil {
			if errors.Is(err, ErrPoolClosed) {
				return ErrStopped
			}
			return err
		}
		return nil
	})
}

// execute is the pool task body. The item is deleted afterwards whatever the
// outcome, unless shutdown was forced while the handler ran.
func (d *Dispatcher) execute(ctx context.Context, item queue.WorkItem) {
	ctx = logging.WithWorkItem(ctx, item.WorkType, item.Fingerprint)
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, d.logger)

	_ = d.recorder.Time(ctx, metrics.OpDispatcherRun, item.WorkType, func() error {
		if err := d.queue.SetProcessing(ctx, item); err != nil {
			logging.ErrorWithContext(logger, "unable to mark work item processing; skipping handler", "handler_failed",
				logging.Error(err),
			)
			return err
		}
		err := d.invoke(ctx, logger, item)
		if err != nil {
			logging.ErrorWithContext(logger, "work item handler failed", "handler_failed",
				logging.Error(err),
			)
		}
		return err
	})

	// The pool context is cancelled only by a forced shutdown while tasks run.
	if ctx.Err() != nil {
		logger.Warn("handler returned after forced shutdown; leaving item for recovery",
			logging.String(logging.FieldEventType, "shutdown_abandoned"),
		)
		return
	}
	if err := d.queue.Clear(ctx, item); err != nil {
		logger.Error("unable to delete finished work item", logging.Error(err))
		return
	}
	logger.Debug("work item finished")
}

func (d *Dispatcher) invoke(ctx context.Context, logger *slog.Logger, item queue.WorkItem) (err error) {
	handler := d.handlers[item.WorkType]
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logger.Error("work item handler panicked",
				logging.Any("panic", r),
				logging.String("stack", string(buf[:n])),
			)
			err = fmt.Errorf("panic in handler for %s: %v", item.WorkType, r)
		}
	}()
	return handler.Handle(ctx, item)
}
