package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"localqueue/internal/logging"
)

// Backend is the persistence contract the Manager drives. *Store implements it.
type Backend interface {
	Insert(ctx context.Context, item WorkItem, state State) error
	Get(ctx context.Context, fingerprint int64) (*WorkItem, error)
	StateOf(ctx context.Context, fingerprint int64) (State, bool, error)
	Counts(ctx context.Context) ([]StateCount, error)
	ListByState(ctx context.Context, state State, limit int) ([]WorkItem, error)
	UpdateState(ctx context.Context, fingerprint int64, state State) error
	UpdateAllToState(ctx context.Context, state State) (int64, error)
	Delete(ctx context.Context, fingerprint int64) error
	DeleteAll(ctx context.Context) (int64, error)
	CheckHealth(ctx context.Context) (DatabaseHealth, error)
}

// ItemFactory builds work items with their fingerprint and creation time.
type ItemFactory interface {
	Create(workType, payload string) WorkItem
}

// OperationRecorder times an operation for the observability side channel.
type OperationRecorder interface {
	Time(ctx context.Context, operation, workType string, fn func() error) error
}

// ErrVanished reports that a conflicting row disappeared before it could be read back.
var ErrVanished = errors.New("conflicting work item vanished before read-back")

// Manager is the only component that touches the Backend. Save owns the
// dedup-on-conflict protocol; every other method is a pass-through.
type Manager struct {
	backend  Backend
	factory  ItemFactory
	recorder OperationRecorder
	logger   *slog.Logger
}

// NewManager wires a Manager. recorder and logger may be nil.
func NewManager(backend Backend, factory ItemFactory, recorder OperationRecorder, logger *slog.Logger) *Manager {
	return &Manager{
		backend:  backend,
		factory:  factory,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "queue-manager"),
	}
}

// Save stores a new PENDING item for (workType, payload). If an identical item
// is already outstanding, the stored row is returned instead; its timestamp
// may differ from the freshly built one. Any other storage error is returned
// unchanged in identity (errors.Is still matches the driver error).
func (m *Manager) Save(ctx context.Context, workType, payload string) (WorkItem, error) {
	var saved WorkItem
	err := m.time(ctx, "manager.save", workType, func() error {
		item := m.factory.Create(workType, payload)
		err := m.backend.Insert(ctx, item, StatePending)
		if err == nil {
			saved = item
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			m.logger.Error("unable to store work item",
				logging.String(logging.FieldWorkType, workType),
				logging.Int64(logging.FieldFingerprint, item.Fingerprint),
				logging.String(logging.FieldEventType, "store_failed"),
				logging.Error(err),
			)
			return err
		}

		m.logger.Debug("work item already exists",
			logging.String(logging.FieldWorkType, workType),
			logging.Int64(logging.FieldFingerprint, item.Fingerprint),
		)
		existing, getErr := m.backend.Get(ctx, item.Fingerprint)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return fmt.Errorf("work item %d: %w", item.Fingerprint, ErrVanished)
		}
		saved = *existing
		return nil
	})
	if err != nil {
		return WorkItem{}, err
	}
	return saved, nil
}

func (m *Manager) time(ctx context.Context, operation, workType string, fn func() error) error {
	if m.recorder == nil {
		return fn()
	}
	return m.recorder.Time(ctx, operation, workType, fn)
}

// SetActivating marks item as claimed by the scheduler.
func (m *Manager) SetActivating(ctx context.Context, item WorkItem) error {
	return m.backend.UpdateState(ctx, item.Fingerprint, StateActivating)
}

// SetProcessing marks item as running on a worker.
func (m *Manager) SetProcessing(ctx context.Context, item WorkItem) error {
	return m.backend.UpdateState(ctx, item.Fingerprint, StateProcessing)
}

// SetAllToPending resets every outstanding row to PENDING.
func (m *Manager) SetAllToPending(ctx context.Context) (int64, error) {
	return m.backend.UpdateAllToState(ctx, StatePending)
}

// PendingItems returns up to limit PENDING items, oldest first.
func (m *Manager) PendingItems(ctx context.Context, limit int) ([]WorkItem, error) {
	return m.backend.ListByState(ctx, StatePending, limit)
}

// Items returns items in state, oldest first. A limit of zero or less is unlimited.
func (m *Manager) Items(ctx context.Context, state State, limit int) ([]WorkItem, error) {
	return m.backend.ListByState(ctx, state, limit)
}

// Get returns the stored item with fingerprint, or nil.
func (m *Manager) Get(ctx context.Context, fingerprint int64) (*WorkItem, error) {
	return m.backend.Get(ctx, fingerprint)
}

// Counts returns the number of rows per present state.
func (m *Manager) Counts(ctx context.Context) ([]StateCount, error) {
	return m.backend.Counts(ctx)
}

// State returns the state of item; the bool is false once the item is gone.
func (m *Manager) State(ctx context.Context, item WorkItem) (State, bool, error) {
	return m.backend.StateOf(ctx, item.Fingerprint)
}

// Clear deletes item regardless of its state.
func (m *Manager) Clear(ctx context.Context, item WorkItem) error {
	return m.backend.Delete(ctx, item.Fingerprint)
}

// ClearAll deletes every row.
func (m *Manager) ClearAll(ctx context.Context) (int64, error) {
	return m.backend.DeleteAll(ctx)
}

// Health reports backend diagnostics.
func (m *Manager) Health(ctx context.Context) (DatabaseHealth, error) {
	return m.backend.CheckHealth(ctx)
}
