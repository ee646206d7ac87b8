package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"localqueue/internal/config"
	"localqueue/internal/fingerprint"
	"localqueue/internal/logging"
	"localqueue/internal/metrics"
	"localqueue/internal/queue"
)

// ErrDropped reports that an enqueue failed and was swallowed because
// exception_on_enqueue_fail is off. Remote callers see it in place of a nil item.
var ErrDropped = errors.New("work item dropped; see daemon log")

// ErrBlankWorkType is the enqueue failure for an empty work type. Like a
// storage failure it is only returned when ExceptionOnEnqueueFail is on.
var ErrBlankWorkType = errors.New("work type is required")

// Options controls facade behaviour.
type Options struct {
	// ExceptionOnEnqueueFail makes Enqueue return storage errors instead of
	// logging them and returning a nil item.
	ExceptionOnEnqueueFail bool
}

// Queue is the producer-facing facade over a queue.Manager.
type Queue struct {
	manager  *queue.Manager
	store    *queue.Store
	opts     Options
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// New wraps an existing manager.
func New(manager *queue.Manager, opts Options, recorder *metrics.Recorder, logger *slog.Logger) *Queue {
	return &Queue{
		manager:  manager,
		opts:     opts,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "queue"),
	}
}

// Open builds the store, fingerprint factory and manager described by cfg.
// A nil cfg uses the built-in defaults. Close releases the store.
func Open(cfg *config.Config, recorder *metrics.Recorder, logger *slog.Logger) (*Queue, error) {
	if cfg == nil {
		defaults := config.Default()
		if err := defaults.Normalize(); err != nil {
			return nil, fmt.Errorf("default configuration: %w", err)
		}
		cfg = &defaults
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	factory, err := fingerprint.NewFactory(cfg.Queue.FingerprintCacheSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("fingerprint factory: %w", err)
	}
	manager := queue.NewManager(store, factory, recorder, logger)
	q := New(manager, Options{ExceptionOnEnqueueFail: cfg.Queue.ExceptionOnEnqueueFail}, recorder, logger)
	q.store = store
	return q, nil
}

// Manager exposes the underlying manager for the scheduler and dispatcher.
func (q *Queue) Manager() *queue.Manager {
	return q.manager
}

// Close closes the store if Open created it.
func (q *Queue) Close() error {
	if q == nil || q.store == nil {
		return nil
	}
	return q.store.Close()
}

// Enqueue stores a PENDING item for (workType, payload), or returns the
// identical item that is already outstanding. Surrounding space is trimmed
// from workType before fingerprinting, matching handler registration. On
// failure it returns the error, or logs it and returns nil, nil when
// ExceptionOnEnqueueFail is off.
func (q *Queue) Enqueue(ctx context.Context, workType, payload string) (*queue.WorkItem, error) {
	workType = strings.TrimSpace(workType)
	var saved queue.WorkItem
	err := q.recorder.Time(ctx, metrics.OpEnqueue, workType, func() error {
		if workType == "" {
			return ErrBlankWorkType
		}
		var err error
		saved, err = q.manager.Save(ctx, workType, payload)
		return err
	})
	if err == nil {
		return &saved, nil
	}
	if q.opts.ExceptionOnEnqueueFail {
		return nil, fmt.Errorf("enqueue %s: %w", workType, err)
	}
	logging.ErrorWithContext(q.logger, "unable to enqueue work item", "enqueue_failed",
		logging.String(logging.FieldWorkType, workType),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the item was dropped; check storage health"),
	)
	return nil, nil
}

// EnqueueItem is Enqueue for remote callers: it returns the stored item as a
// DTO with its current state, and ErrDropped when a failure was swallowed.
func (q *Queue) EnqueueItem(ctx context.Context, workType, payload string) (QueueItem, error) {
	item, err := q.Enqueue(ctx, workType, payload)
	if err != nil {
		return QueueItem{}, err
	}
	if item == nil {
		return QueueItem{}, ErrDropped
	}
	state, ok, err := q.State(ctx, *item)
	if err != nil {
		return QueueItem{}, err
	}
	if !ok {
		state = ""
	}
	return FromWorkItem(*item, state), nil
}

// State reports the item's state; the bool is false once it has been deleted.
func (q *Queue) State(ctx context.Context, item queue.WorkItem) (queue.State, bool, error) {
	return q.manager.State(ctx, item)
}

// Counts returns per-state totals for states that have rows.
func (q *Queue) Counts(ctx context.Context) ([]queue.StateCount, error) {
	return q.manager.Counts(ctx)
}

// Clear deletes item.
func (q *Queue) Clear(ctx context.Context, item queue.WorkItem) error {
	return q.manager.Clear(ctx, item)
}

// ClearAll deletes every item and returns how many were removed.
func (q *Queue) ClearAll(ctx context.Context) (int64, error) {
	return q.manager.ClearAll(ctx)
}

// Items lists items in state, oldest first.
func (q *Queue) Items(ctx context.Context, state queue.State, limit int) ([]queue.WorkItem, error) {
	return q.manager.Items(ctx, state, limit)
}

// Get returns the item with fingerprint, or nil.
func (q *Queue) Get(ctx context.Context, fp int64) (*queue.WorkItem, error) {
	return q.manager.Get(ctx, fp)
}
