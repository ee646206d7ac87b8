package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"localqueue/internal/logging"
	"localqueue/internal/metrics"
	"localqueue/internal/queue"
	"localqueue/internal/scheduler"
	"localqueue/internal/testsupport"
)

type fakeExecutor struct {
	mu        sync.Mutex
	capacity  int
	submitted []queue.WorkItem
	failNext  int
	capCalls  int
}

func (e *fakeExecutor) AvailableCapacity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capCalls++
	return e.capacity
}

func (e *fakeExecutor) Submit(_ context.Context, item queue.WorkItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failNext > 0 {
		e.failNext--
		return errors.New("executor rejected item")
	}
	e.submitted = append(e.submitted, item)
	return nil
}

func (e *fakeExecutor) snapshot() ([]queue.WorkItem, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]queue.WorkItem(nil), e.submitted...), e.capCalls
}

type failingReset struct {
	*queue.Manager
}

func (failingReset) SetAllToPending(context.Context) (int64, error) {
	return 0, errors.New("database unavailable")
}

func seed(t *testing.T, store *queue.Store, fp, created int64, state queue.State) queue.WorkItem {
	t.Helper()
	return testsupport.Seed(t, store, queue.WorkItem{Fingerprint: fp, CreatedAt: created, WorkType: "email", Payload: "p"}, state)
}

func slowOptions() scheduler.Options {
	return scheduler.Options{InitialDelay: time.Hour, Interval: time.Hour, ShutdownGrace: time.Second}
}

func TestStartRecoversOutstandingItemsBeforeFirstTick(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	seed(t, store, 1, 1, queue.StateActivating)
	seed(t, store, 2, 2, queue.StateProcessing)
	seed(t, store, 3, 3, queue.StatePending)

	exec := &fakeExecutor{capacity: 8}
	s := scheduler.New(slowOptions(), mgr, exec, metrics.NewNop(), logging.NewNop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	for _, fp := range []int64{1, 2, 3} {
		testsupport.RequireState(t, store, fp, queue.StatePending)
	}
	if submitted, _ := exec.snapshot(); len(submitted) != 0 {
		t.Fatalf("no tick should have run yet, got %d submissions", len(submitted))
	}
}

func TestStartFailsWhenRecoveryFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)

	s := scheduler.New(slowOptions(), failingReset{mgr}, &fakeExecutor{}, nil, logging.NewNop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
	if s.Running() {
		t.Fatal("scheduler should remain stopped")
	}
	s.Stop()
}

func TestTickClaimsOldestUpToCapacity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	seed(t, store, 30, 300, queue.StatePending)
	seed(t, store, 10, 100, queue.StatePending)
	seed(t, store, 20, 200, queue.StatePending)

	exec := &fakeExecutor{capacity: 2}
	s := scheduler.New(slowOptions(), mgr, exec, metrics.NewNop(), logging.NewNop())
	if err := s.ProcessPendingQueue(context.Background()); err != nil {
		t.Fatalf("ProcessPendingQueue: %v", err)
	}

	submitted, _ := exec.snapshot()
	if len(submitted) != 2 || submitted[0].Fingerprint != 10 || submitted[1].Fingerprint != 20 {
		t.Fatalf("unexpected submissions %+v", submitted)
	}
	testsupport.RequireState(t, store, 10, queue.StateActivating)
	testsupport.RequireState(t, store, 20, queue.StateActivating)
	testsupport.RequireState(t, store, 30, queue.StatePending)
}

func TestTickDoesNothingWithoutCapacity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	seed(t, store, 1, 1, queue.StatePending)

	exec := &fakeExecutor{capacity: 0}
	s := scheduler.New(slowOptions(), mgr, exec, nil, logging.NewNop())
	for i := 0; i < 3; i++ {
		if err := s.ProcessPendingQueue(context.Background()); err != nil {
			t.Fatalf("ProcessPendingQueue: %v", err)
		}
	}
	submitted, _ := exec.snapshot()
	if len(submitted) != 0 {
		t.Fatalf("expected no submissions, got %d", len(submitted))
	}
	testsupport.RequireState(t, store, 1, queue.StatePending)
}

func TestTickStopsAtFirstSubmitError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	seed(t, store, 1, 1, queue.StatePending)
	seed(t, store, 2, 2, queue.StatePending)

	exec := &fakeExecutor{capacity: 5, failNext: 1}
	s := scheduler.New(slowOptions(), mgr, exec, nil, logging.NewNop())
	if err := s.ProcessPendingQueue(context.Background()); err == nil {
		t.Fatal("expected tick error")
	}
	// The rejected item was already marked; it waits for restart recovery.
	testsupport.RequireState(t, store, 1, queue.StateActivating)
	testsupport.RequireState(t, store, 2, queue.StatePending)
}

func TestLoopSurvivesTickErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	seed(t, store, 1, 1, queue.StatePending)
	seed(t, store, 2, 2, queue.StatePending)

	exec := &fakeExecutor{capacity: 1, failNext: 1}
	opts := scheduler.Options{InitialDelay: 0, Interval: 10 * time.Millisecond, ShutdownGrace: time.Second}
	s := scheduler.New(opts, mgr, exec, metrics.NewNop(), logging.NewNop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if submitted, _ := exec.snapshot(); len(submitted) >= 1 {
			if submitted[0].Fingerprint != 2 {
				t.Fatalf("expected the second item after the first was rejected, got %d", submitted[0].Fingerprint)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scheduler loop stopped ticking after an error")
}

func TestStopIsIdempotentAndHaltsTicks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)

	exec := &fakeExecutor{capacity: 1}
	opts := scheduler.Options{Interval: 5 * time.Millisecond, ShutdownGrace: time.Second}
	s := scheduler.New(opts, mgr, exec, nil, logging.NewNop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop()
	_, before := exec.snapshot()
	time.Sleep(30 * time.Millisecond)
	_, after := exec.snapshot()
	if before != after {
		t.Fatalf("ticks continued after Stop: %d -> %d", before, after)
	}
	if s.Running() {
		t.Fatal("expected stopped scheduler")
	}
}

// blockingExecutor holds Submit until release is closed.
type blockingExecutor struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (e *blockingExecutor) AvailableCapacity() int { return 1 }

func (e *blockingExecutor) Submit(context.Context, queue.WorkItem) error {
	e.once.Do(func() { close(e.entered) })
	<-e.release
	return nil
}

func TestStartRefusesWhileAbandonedTickRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	seed(t, store, 1, 1, queue.StatePending)

	exec := &blockingExecutor{entered: make(chan struct{}), release: make(chan struct{})}
	opts := scheduler.Options{Interval: time.Hour, ShutdownGrace: 20 * time.Millisecond}
	s := scheduler.New(opts, mgr, exec, nil, logging.NewNop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-exec.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("tick never reached the executor")
	}

	s.Stop()
	if err := s.Start(context.Background()); !errors.Is(err, scheduler.ErrTickInProgress) {
		t.Fatalf("expected ErrTickInProgress, got %v", err)
	}
	if s.Running() {
		t.Fatal("expected scheduler to stay stopped")
	}

	close(exec.release)
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := s.Start(context.Background())
		if err == nil {
			break
		}
		if !errors.Is(err, scheduler.ErrTickInProgress) || time.Now().After(deadline) {
			t.Fatalf("Start after tick returned: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()
}
