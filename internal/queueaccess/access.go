package queueaccess

import (
	"context"
	"fmt"

	"localqueue/internal/api"
	"localqueue/internal/ipc"
	"localqueue/internal/queue"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Enqueue(ctx context.Context, workType, payload string) (api.QueueItem, error)
	Stats(ctx context.Context) (map[string]int64, error)
	List(ctx context.Context, limit int, states []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, fingerprint int64) (*api.QueueItem, error)
	ClearItem(ctx context.Context, fingerprint int64) (bool, error)
	ClearAll(ctx context.Context) (int64, error)
	// Remote reports whether calls go through a running daemon.
	Remote() bool
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewQueueAccess returns an Access backed by direct store access.
func NewQueueAccess(q *api.Queue) Access {
	return &queueAccess{queue: q, service: api.NewQueueService(q)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Remote() bool { return true }

func (a *ipcAccess) Enqueue(_ context.Context, workType, payload string) (api.QueueItem, error) {
	resp, err := a.client.Enqueue(workType, payload)
	if err != nil {
		return api.QueueItem{}, err
	}
	return resp.Item, nil
}

func (a *ipcAccess) Stats(_ context.Context) (map[string]int64, error) {
	resp, err := a.client.QueueStats()
	if err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

func (a *ipcAccess) List(_ context.Context, limit int, states []string) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList(limit, states...)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, fingerprint int64) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(fingerprint)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

func (a *ipcAccess) ClearItem(_ context.Context, fingerprint int64) (bool, error) {
	resp, err := a.client.QueueClearItem(fingerprint)
	if err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ClearAll(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClear()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

type queueAccess struct {
	queue   *api.Queue
	service *api.QueueService
}

func (a *queueAccess) Remote() bool { return false }

func (a *queueAccess) Enqueue(ctx context.Context, workType, payload string) (api.QueueItem, error) {
	return a.queue.EnqueueItem(ctx, workType, payload)
}

func (a *queueAccess) Stats(ctx context.Context) (map[string]int64, error) {
	return a.service.Stats(ctx)
}

func (a *queueAccess) List(ctx context.Context, limit int, states []string) ([]api.QueueItem, error) {
	filters := make([]queue.State, 0, len(states))
	for _, raw := range states {
		parsed, ok := queue.ParseState(raw)
		if !ok {
			return nil, fmt.Errorf("unknown state %q", raw)
		}
		filters = append(filters, parsed)
	}
	return a.service.List(ctx, limit, filters...)
}

func (a *queueAccess) Describe(ctx context.Context, fingerprint int64) (*api.QueueItem, error) {
	item, err := a.service.Describe(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("queue item %d not found", fingerprint)
	}
	return item, nil
}

func (a *queueAccess) ClearItem(ctx context.Context, fingerprint int64) (bool, error) {
	item, err := a.queue.Get(ctx, fingerprint)
	if err != nil || item == nil {
		return false, err
	}
	if err := a.queue.Clear(ctx, *item); err != nil {
		return false, err
	}
	return true, nil
}

func (a *queueAccess) ClearAll(ctx context.Context) (int64, error) {
	return a.queue.ClearAll(ctx)
}
