package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"localqueue/internal/dispatch"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPoolPrestartsAndGrowsToMax(t *testing.T) {
	release := make(chan struct{})
	var running atomic.Int32
	pool := dispatch.NewPool(dispatch.PoolOptions{MinWorkers: 1, MaxWorkers: 3, IdleTimeout: time.Minute},
		func(ctx context.Context, n int) {
			running.Add(1)
			<-release
		})
	pool.Start()
	pool.Start()
	if got := pool.Workers(); got != 1 {
		t.Fatalf("expected 1 prestarted worker, got %d", got)
	}

	for i := 0; i < 5; i++ {
		if err := pool.Submit(i); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	waitFor(t, "three running tasks", func() bool { return running.Load() == 3 })
	if got := pool.Workers(); got != 3 {
		t.Fatalf("expected pool to cap at 3 workers, got %d", got)
	}
	if got := pool.InFlight(); got != 5 {
		t.Fatalf("expected 5 in flight, got %d", got)
	}
	if got := pool.Available(); got != -2 {
		t.Fatalf("expected available -2 with a backlog of 2, got %d", got)
	}

	close(release)
	waitFor(t, "backlog to drain", func() bool { return pool.InFlight() == 0 })
	if running.Load() != 5 {
		t.Fatalf("expected every task to run, got %d", running.Load())
	}
	pool.Shutdown(time.Second)
}

func TestPoolRetiresIdleWorkersDownToMin(t *testing.T) {
	var wg sync.WaitGroup
	release := make(chan struct{})
	pool := dispatch.NewPool(dispatch.PoolOptions{MinWorkers: 1, MaxWorkers: 4, IdleTimeout: 30 * time.Millisecond},
		func(ctx context.Context, n int) {
			defer wg.Done()
			<-release
		})
	pool.Start()
	wg.Add(4)
	for i := 0; i < 4; i++ {
		_ = pool.Submit(i)
	}
	waitFor(t, "four workers", func() bool { return pool.Workers() == 4 })
	close(release)
	wg.Wait()

	waitFor(t, "idle workers to retire", func() bool { return pool.Workers() == 1 })
	time.Sleep(100 * time.Millisecond)
	if got := pool.Workers(); got != 1 {
		t.Fatalf("expected the minimum worker to stay, got %d", got)
	}
	pool.Shutdown(time.Second)
}

func TestPoolShutdownDrainsBacklog(t *testing.T) {
	var done atomic.Int32
	pool := dispatch.NewPool(dispatch.PoolOptions{MinWorkers: 1, MaxWorkers: 1, IdleTimeout: time.Minute},
		func(ctx context.Context, n int) {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
		})
	pool.Start()
	for i := 0; i < 3; i++ {
		_ = pool.Submit(i)
	}
	abandoned, drained := pool.Shutdown(5 * time.Second)
	if !drained || len(abandoned) != 0 {
		t.Fatalf("expected clean drain, got drained=%v abandoned=%v", drained, abandoned)
	}
	if done.Load() != 3 {
		t.Fatalf("expected 3 completed tasks, got %d", done.Load())
	}
	if err := pool.Submit(9); !errors.Is(err, dispatch.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolForcedShutdownAbandonsBacklog(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	pool := dispatch.NewPool(dispatch.PoolOptions{MinWorkers: 1, MaxWorkers: 1, IdleTimeout: time.Minute},
		func(ctx context.Context, n int) {
			if n != 0 {
				t.Errorf("task %d should never start", n)
				return
			}
			close(started)
			<-ctx.Done()
			close(cancelled)
		})
	pool.Start()
	for i := 0; i < 3; i++ {
		_ = pool.Submit(i)
	}
	<-started

	abandoned, drained := pool.Shutdown(50 * time.Millisecond)
	if drained {
		t.Fatal("expected forced shutdown")
	}
	if len(abandoned) != 2 || abandoned[0] != 1 || abandoned[1] != 2 {
		t.Fatalf("unexpected abandoned tasks %v", abandoned)
	}
	if !pool.Forced() {
		t.Fatal("expected Forced to report true")
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running task context was not cancelled")
	}
}
