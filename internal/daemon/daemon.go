package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"localqueue/internal/api"
	"localqueue/internal/config"
	"localqueue/internal/dispatch"
	"localqueue/internal/logging"
	"localqueue/internal/metrics"
	"localqueue/internal/preflight"
	"localqueue/internal/queue"
	"localqueue/internal/scheduler"
)

// Daemon runs the scheduler and dispatcher over one queue and enforces
// single-instance execution per data directory.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	queue      *api.Queue
	queueSvc   *api.QueueService
	dispatcher *dispatch.Dispatcher
	scheduler  *scheduler.Scheduler
	apiServer  *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	lastError atomic.Value
}

// New constructs a stopped daemon. Handlers registered after New are not seen.
func New(cfg *config.Config, q *api.Queue, registry *dispatch.Registry, recorder *metrics.Recorder, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || q == nil || registry == nil {
		return nil, errors.New("daemon requires config, queue, and handler registry")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	manager := q.Manager()
	dispatcher := dispatch.New(dispatch.OptionsFromConfig(cfg), manager, registry, recorder, logger)
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		queue:      q,
		queueSvc:   api.NewQueueService(q),
		dispatcher: dispatcher,
		scheduler:  scheduler.New(scheduler.OptionsFromConfig(cfg), manager, dispatcher, recorder, logger),
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiServer = srv
	return d, nil
}

// Start acquires the daemon lock, then starts the dispatcher, the scheduler
// (which resets orphaned items to PENDING first), and the optional HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	if err := preflight.FirstFailure(preflight.RunDirectories(d.cfg)); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another localqueue daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.dispatcher.Start()
	if err := d.scheduler.Start(runCtx); err != nil {
		d.rollback(cancel)
		d.setLastError(err)
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.apiServer.start(runCtx); err != nil {
		d.scheduler.Stop()
		d.rollback(cancel)
		d.setLastError(err)
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("localqueue daemon started",
		logging.String("lock", d.lockPath),
		logging.String("storage", d.cfg.StorageLocation()),
		logging.Any("work_types", d.dispatcher.WorkTypes()),
	)
	return nil
}

func (d *Daemon) rollback(cancel context.CancelFunc) {
	d.dispatcher.Stop()
	cancel()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Stop halts the scheduler, drains the dispatcher within the shutdown grace,
// and releases the daemon lock. It is a no-op when the daemon is stopped.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.apiServer.stop()
	d.scheduler.Stop()
	d.dispatcher.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("localqueue daemon stopped")
}

// Close stops the daemon and closes the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.queue.Close()
}

// Running reports whether Start succeeded without a matching Stop.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the flock file guarding this daemon's data directory.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Status returns the current daemon status. Queue statistics are best effort;
// a storage failure is reported in LastError.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		Driver:            d.cfg.Storage.Driver,
		DatabaseLocation:  d.cfg.StorageLocation(),
		LockFilePath:      d.lockPath,
		SocketPath:        d.cfg.Paths.SocketPath,
		SchedulerRunning:  d.scheduler.Running(),
		AvailableCapacity: d.dispatcher.AvailableCapacity(),
		WorkTypes:         d.dispatcher.WorkTypes(),
	}
	stats, err := d.queueSvc.Stats(ctx)
	if err != nil {
		d.setLastError(err)
	} else {
		status.QueueStats = stats
	}
	if last, ok := d.lastError.Load().(string); ok {
		status.LastError = last
	}
	return status
}

func (d *Daemon) setLastError(err error) {
	if err != nil {
		d.lastError.Store(err.Error())
	}
}

// Enqueue stores a work item on behalf of a remote producer. When the queue
// swallows a storage failure the result is api.ErrDropped.
func (d *Daemon) Enqueue(ctx context.Context, workType, payload string) (api.QueueItem, error) {
	item, err := d.queue.EnqueueItem(ctx, workType, payload)
	if err != nil {
		d.setLastError(err)
	}
	return item, err
}

// ListQueue returns items in the requested states (all when empty), each
// state oldest first, with at most limit items per state.
func (d *Daemon) ListQueue(ctx context.Context, limit int, states []queue.State) ([]api.QueueItem, error) {
	return d.queueSvc.List(ctx, limit, states...)
}

// QueueStats returns per-state totals, zero-filled.
func (d *Daemon) QueueStats(ctx context.Context) (map[string]int64, error) {
	return d.queueSvc.Stats(ctx)
}

// DescribeItem returns the item with fingerprint, or nil when it is gone.
func (d *Daemon) DescribeItem(ctx context.Context, fp int64) (*api.QueueItem, error) {
	return d.queueSvc.Describe(ctx, fp)
}

// ClearItem deletes the item with fingerprint regardless of its state. It
// reports whether a row existed.
func (d *Daemon) ClearItem(ctx context.Context, fp int64) (bool, error) {
	item, err := d.queue.Get(ctx, fp)
	if err != nil || item == nil {
		return false, err
	}
	if err := d.queue.Clear(ctx, *item); err != nil {
		return false, err
	}
	d.logger.Info("work item cleared",
		logging.String(logging.FieldWorkType, item.WorkType),
		logging.Int64(logging.FieldFingerprint, fp),
		logging.String(logging.FieldEventType, "item_cleared"),
	)
	return true, nil
}

// ClearQueue deletes every item, including ones a worker is running.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	removed, err := d.queue.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	d.logger.Info("queue cleared",
		logging.Int64("removed", removed),
		logging.String(logging.FieldEventType, "queue_cleared"),
	)
	return removed, nil
}
