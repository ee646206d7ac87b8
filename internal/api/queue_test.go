package api_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"localqueue/internal/api"
	"localqueue/internal/dispatch"
	"localqueue/internal/logging"
	"localqueue/internal/metrics"
	"localqueue/internal/queue"
	"localqueue/internal/scheduler"
	"localqueue/internal/testsupport"
)

type brokenStore struct {
	*queue.Store
}

func (brokenStore) Insert(context.Context, queue.WorkItem, queue.State) error {
	return errors.New("disk I/O error")
}

func TestEnqueueFailOpenSwallowsStorageErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, brokenStore{store})

	q := api.New(mgr, api.Options{ExceptionOnEnqueueFail: false}, nil, logging.NewNop())
	item, err := q.Enqueue(context.Background(), "email", "hello")
	if err != nil || item != nil {
		t.Fatalf("expected nil, nil when failing open; got %+v, %v", item, err)
	}
}

func TestEnqueueFailClosedPropagatesStorageErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, brokenStore{store})

	q := api.New(mgr, api.Options{ExceptionOnEnqueueFail: true}, metrics.NewNop(), logging.NewNop())
	item, err := q.Enqueue(context.Background(), "email", "hello")
	if err == nil || item != nil {
		t.Fatalf("expected error when failing closed; got %+v, %v", item, err)
	}
}

func TestEnqueueDuplicateIsNotAnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	q, err := api.Open(cfg, metrics.NewNop(), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "email", "hello")
	if err != nil || first == nil {
		t.Fatalf("first Enqueue: %+v %v", first, err)
	}
	second, err := q.Enqueue(ctx, "email", "hello")
	if err != nil || second == nil {
		t.Fatalf("second Enqueue: %+v %v", second, err)
	}
	if *first != *second {
		t.Fatalf("expected the stored item back, got %+v vs %+v", first, second)
	}

	counts, err := q.Counts(ctx)
	if err != nil || len(counts) != 1 || counts[0].Count != 1 {
		t.Fatalf("Counts: %+v %v", counts, err)
	}
	got, err := q.Get(ctx, first.Fingerprint)
	if err != nil || got == nil || got.Payload != "hello" {
		t.Fatalf("Get: %+v %v", got, err)
	}
}

func TestEnqueueBlankWorkTypeFollowsFailMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	ctx := context.Background()

	open := api.New(mgr, api.Options{ExceptionOnEnqueueFail: false}, nil, logging.NewNop())
	for _, workType := range []string{"", "   "} {
		item, err := open.Enqueue(ctx, workType, "hello")
		if err != nil || item != nil {
			t.Fatalf("Enqueue(%q) failing open: got %+v, %v", workType, item, err)
		}
	}
	if _, err := open.EnqueueItem(ctx, "", "hello"); !errors.Is(err, api.ErrDropped) {
		t.Fatalf("EnqueueItem failing open: expected ErrDropped, got %v", err)
	}

	closed := api.New(mgr, api.Options{ExceptionOnEnqueueFail: true}, nil, logging.NewNop())
	if _, err := closed.Enqueue(ctx, "", "hello"); !errors.Is(err, api.ErrBlankWorkType) {
		t.Fatalf("failing closed: expected ErrBlankWorkType, got %v", err)
	}

	counts, err := mgr.Counts(ctx)
	if err != nil || len(counts) != 0 {
		t.Fatalf("expected nothing stored, got %+v %v", counts, err)
	}
}

func TestEnqueueTrimsWorkTypeOnEveryPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	q, err := api.Open(cfg, metrics.NewNop(), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	ctx := context.Background()

	direct, err := q.Enqueue(ctx, " email", "hello")
	if err != nil || direct == nil {
		t.Fatalf("Enqueue: %+v %v", direct, err)
	}
	if direct.WorkType != "email" || direct.Fingerprint != 8118067870207836362 {
		t.Fatalf("expected trimmed work type and its fingerprint, got %+v", direct)
	}
	remote, err := q.EnqueueItem(ctx, "email ", "hello")
	if err != nil {
		t.Fatalf("EnqueueItem: %v", err)
	}
	if remote.Fingerprint != direct.Fingerprint || remote.WorkType != "email" {
		t.Fatalf("expected the same item from both paths, got %+v vs %+v", remote, direct)
	}
	counts, err := q.Counts(ctx)
	if err != nil || len(counts) != 1 || counts[0].Count != 1 {
		t.Fatalf("expected one row, got %+v %v", counts, err)
	}
}

func TestOpenWithoutConfigUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LOCALQUEUE_POSTGRES_DSN", "")

	q, err := api.Open(nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("Open(nil): %v", err)
	}
	t.Cleanup(func() { q.Close() })

	health, err := q.Manager().Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	want := filepath.Join(home, ".local", "share", "localqueue", "queue.db")
	if health.Location != want {
		t.Fatalf("default database at %q, want %q", health.Location, want)
	}
}

func TestClearAndClearAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	q, err := api.Open(cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	ctx := context.Background()

	a, _ := q.Enqueue(ctx, "email", "a")
	_, _ = q.Enqueue(ctx, "email", "b")
	_, _ = q.Enqueue(ctx, "sms", "c")

	if err := q.Clear(ctx, *a); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := q.State(ctx, *a); err != nil || ok {
		t.Fatalf("expected cleared item to be gone: ok=%v err=%v", ok, err)
	}
	removed, err := q.ClearAll(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("ClearAll: %d %v", removed, err)
	}
}

// observingExecutor records each item's state as the scheduler hands it over.
type observingExecutor struct {
	*dispatch.Dispatcher
	q      *api.Queue
	mu     sync.Mutex
	states []queue.State
}

func (e *observingExecutor) Submit(ctx context.Context, item queue.WorkItem) error {
	state, _, err := e.q.State(ctx, item)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.states = append(e.states, state)
	e.mu.Unlock()
	return e.Dispatcher.Submit(ctx, item)
}

func TestEndToEndEmailHello(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	q, err := api.Open(cfg, metrics.NewNop(), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	ctx := context.Background()

	item, err := q.Enqueue(ctx, "email", "hello")
	if err != nil || item == nil {
		t.Fatalf("Enqueue: %+v %v", item, err)
	}
	if item.Fingerprint != 8118067870207836362 {
		t.Fatalf("unexpected fingerprint %d", item.Fingerprint)
	}
	if state, ok, err := q.State(ctx, *item); err != nil || !ok || state != queue.StatePending {
		t.Fatalf("expected PENDING after enqueue, got %q ok=%v err=%v", state, ok, err)
	}

	var (
		mu       sync.Mutex
		received []queue.WorkItem
		during   []queue.State
	)
	reg := dispatch.NewRegistry()
	_ = reg.RegisterFunc("email", func(ctx context.Context, got queue.WorkItem) error {
		state, _, err := q.State(ctx, got)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		received = append(received, got)
		during = append(during, state)
		return nil
	})
	d := dispatch.New(dispatch.OptionsFromConfig(cfg), q.Manager(), reg, nil, logging.NewNop())
	d.Start()
	defer d.Stop()
	exec := &observingExecutor{Dispatcher: d, q: q}

	opts := scheduler.OptionsFromConfig(cfg)
	opts.Interval = 10 * time.Millisecond
	s := scheduler.New(opts, q.Manager(), exec, nil, logging.NewNop())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("scheduler Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, ok, err := q.State(ctx, *item)
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	exec.mu.Lock()
	submitted := append([]queue.State(nil), exec.states...)
	exec.mu.Unlock()
	if len(submitted) != 1 || submitted[0] != queue.StateActivating {
		t.Fatalf("expected ACTIVATING at submit, got %v", submitted)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Payload != "hello" || received[0].Fingerprint != item.Fingerprint {
		t.Fatalf("handler received %+v", received)
	}
	if len(during) != 1 || during[0] != queue.StateProcessing {
		t.Fatalf("expected PROCESSING inside the handler, got %v", during)
	}
	counts, err := q.Counts(ctx)
	if err != nil || len(counts) != 0 {
		t.Fatalf("expected empty queue, got %+v %v", counts, err)
	}
}
