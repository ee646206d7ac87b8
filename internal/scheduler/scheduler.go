package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"localqueue/internal/config"
	"localqueue/internal/logging"
	"localqueue/internal/metrics"
	"localqueue/internal/queue"
)

// ItemQueue is the subset of queue.Manager the scheduler drives.
type ItemQueue interface {
	SetAllToPending(ctx context.Context) (int64, error)
	PendingItems(ctx context.Context, limit int) ([]queue.WorkItem, error)
	SetActivating(ctx context.Context, item queue.WorkItem) error
}

// Executor accepts claimed items. *dispatch.Dispatcher implements it.
type Executor interface {
	AvailableCapacity() int
	Submit(ctx context.Context, item queue.WorkItem) error
}

// Options controls tick timing and shutdown.
type Options struct {
	InitialDelay  time.Duration
	Interval      time.Duration
	ShutdownGrace time.Duration
}

// OptionsFromConfig reads the processor settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InitialDelay:  cfg.ProcessorInitialDelay(),
		Interval:      cfg.ProcessorInterval(),
		ShutdownGrace: cfg.ShutdownGrace(),
	}
}

// ErrTickInProgress is returned by Start when a tick abandoned by a timed
// out Stop has not returned yet.
var ErrTickInProgress = errors.New("previous scheduler tick still running")

// Scheduler moves PENDING items to the executor on a fixed interval.
type Scheduler struct {
	opts     Options
	queue    ItemQueue
	executor Executor
	recorder *metrics.Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a stopped Scheduler.
func New(opts Options, q ItemQueue, executor Executor, recorder *metrics.Recorder, logger *slog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 15 * time.Second
	}
	return &Scheduler{
		opts:     opts,
		queue:    q,
		executor: executor,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Start resets every outstanding item to PENDING, then begins ticking.
// Items left ACTIVATING or PROCESSING by a previous run are picked up again.
// If the reset fails the scheduler stays stopped. Start is a no-op when running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrTickInProgress
		}
	}

	reset, err := s.queue.SetAllToPending(ctx)
	if err != nil {
		return fmt.Errorf("reset queue to pending: %w", err)
	}
	if reset > 0 {
		s.logger.Info("recovered outstanding work items", logging.Int64("count", reset))
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(loopCtx, s.done)

	s.logger.Info("scheduler started",
		logging.Duration("initial_delay", s.opts.InitialDelay),
		logging.Duration("interval", s.opts.Interval),
	)
	return nil
}

// Stop halts ticking and waits up to the shutdown grace for a tick in
// progress. Stop is a no-op when stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()

	timer := time.NewTimer(s.opts.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-s.done:
		s.logger.Info("scheduler stopped")
	case <-timer.C:
		logging.WarnWithContext(s.logger, "scheduler tick did not finish within shutdown grace", "shutdown_timeout",
			logging.Duration("grace", s.opts.ShutdownGrace),
		)
	}
}

// Running reports whether the scheduler is ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.opts.InitialDelay > 0 {
		delay := time.NewTimer(s.opts.InitialDelay)
		select {
		case <-ctx.Done():
			delay.Stop()
			return
		case <-delay.C:
		}
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if err := s.ProcessPendingQueue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler tick failed",
				logging.String(logging.FieldEventType, "tick_failed"),
				logging.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessPendingQueue runs one tick: it claims up to the executor's available
// capacity of the oldest PENDING items and submits each one. The first error
// stops the tick; unclaimed items stay PENDING.
func (s *Scheduler) ProcessPendingQueue(ctx context.Context) error {
	return s.recorder.Time(ctx, metrics.OpSchedulerTick, "", func() error {
		// Capacity is read once, without a lock; another submitter can use it
		// before this tick does, leaving the extra items in the pool backlog.
		available := s.executor.AvailableCapacity()
		s.recorder.RecordAvailable(ctx, available)
		if available < 1 {
			return nil
		}

		items, err := s.queue.PendingItems(ctx, available)
		if err != nil {
			return fmt.Errorf("fetch pending items: %w", err)
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.queue.SetActivating(ctx, item); err != nil {
				return fmt.Errorf("activate %d: %w", item.Fingerprint, err)
			}
			if err := s.executor.Submit(ctx, item); err != nil {
				return fmt.Errorf("submit %d: %w", item.Fingerprint, err)
			}
		}
		if len(items) > 0 {
			s.logger.Debug("claimed pending items", logging.Int("count", len(items)), logging.Int("available", available))
		}
		return nil
	})
}
