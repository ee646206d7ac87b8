package api

import (
	"context"

	"localqueue/internal/queue"
)

// QueueReader abstracts the read-only queue operations needed for API queries.
type QueueReader interface {
	Items(ctx context.Context, state queue.State, limit int) ([]queue.WorkItem, error)
	Counts(ctx context.Context) ([]queue.StateCount, error)
	Get(ctx context.Context, fp int64) (*queue.WorkItem, error)
	State(ctx context.Context, item queue.WorkItem) (queue.State, bool, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	reader QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(reader QueueReader) *QueueService {
	if reader == nil {
		return nil
	}
	return &QueueService{reader: reader}
}

// List returns items in the given states, each state oldest first. No states
// means all of them. limit applies per state; zero or less is unlimited.
func (s *QueueService) List(ctx context.Context, limit int, states ...queue.State) ([]QueueItem, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	if len(states) == 0 {
		states = queue.AllStates()
	}
	var out []QueueItem
	for _, state := range states {
		items, err := s.reader.Items(ctx, state, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, FromWorkItems(items, state)...)
	}
	return out, nil
}

// Stats returns counts for every state, zero-filled.
func (s *QueueService) Stats(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	counts, err := s.reader.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(counts), nil
}

// Describe fetches a single item with its current state. It returns nil when
// the item does not exist.
func (s *QueueService) Describe(ctx context.Context, fp int64) (*QueueItem, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	item, err := s.reader.Get(ctx, fp)
	if err != nil || item == nil {
		return nil, err
	}
	state, ok, err := s.reader.State(ctx, *item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	dto := FromWorkItem(*item, state)
	return &dto, nil
}
