package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"localqueue/internal/fingerprint"
	"localqueue/internal/queue"
	"localqueue/internal/testsupport"
)

// failingBackend wraps a real store and injects an insert failure.
type failingBackend struct {
	*queue.Store
	insertErr error
	vanish    bool
}

func (f *failingBackend) Insert(ctx context.Context, item queue.WorkItem, state queue.State) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Store.Insert(ctx, item, state)
}

func (f *failingBackend) Get(ctx context.Context, fp int64) (*queue.WorkItem, error) {
	if f.vanish {
		return nil, nil
	}
	return f.Store.Get(ctx, fp)
}

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Millisecond)
		return current
	}
}

func TestSaveDedupReturnsExistingRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store, fingerprint.WithClock(steppingClock(time.UnixMilli(1000))))
	ctx := context.Background()

	first, err := mgr.Save(ctx, "email", "hello")
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second, err := mgr.Save(ctx, "email", "hello")
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("fingerprints differ: %d vs %d", first.Fingerprint, second.Fingerprint)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Fatalf("expected the stored row back (createdAt %d), got %d", first.CreatedAt, second.CreatedAt)
	}

	counts, err := mgr.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if len(counts) != 1 || counts[0].State != queue.StatePending || counts[0].Count != 1 {
		t.Fatalf("expected one pending row, got %+v", counts)
	}
}

func TestSaveDistinctInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	ctx := context.Background()

	a, _ := mgr.Save(ctx, "email", "hello")
	b, _ := mgr.Save(ctx, "email", "goodbye")
	c, _ := mgr.Save(ctx, "sms", "hello")
	if a.Fingerprint == b.Fingerprint || a.Fingerprint == c.Fingerprint {
		t.Fatalf("expected distinct fingerprints, got %d %d %d", a.Fingerprint, b.Fingerprint, c.Fingerprint)
	}
}

func TestSavePropagatesStorageFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	boom := errors.New("disk full")
	mgr := testsupport.NewManager(t, cfg, &failingBackend{Store: store, insertErr: boom})

	_, err := mgr.Save(context.Background(), "email", "hello")
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage failure to propagate, got %v", err)
	}
}

func TestSaveConflictWithVanishedRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	backend := &failingBackend{Store: store, vanish: true}
	mgr := testsupport.NewManager(t, cfg, backend)
	ctx := context.Background()

	if _, err := mgr.Save(ctx, "email", "hello"); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if _, err := mgr.Save(ctx, "email", "hello"); !errors.Is(err, queue.ErrVanished) {
		t.Fatalf("expected ErrVanished, got %v", err)
	}
}

func TestManagerStateTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, cfg, store)
	ctx := context.Background()

	it, err := mgr.Save(ctx, "email", "hello")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertState := func(want queue.State) {
		t.Helper()
		got, ok, err := mgr.State(ctx, it)
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if want == "" {
			if ok {
				t.Fatalf("expected no state, got %s", got)
			}
			return
		}
		if !ok || got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}

	assertState(queue.StatePending)
	if err := mgr.SetActivating(ctx, it); err != nil {
		t.Fatalf("SetActivating: %v", err)
	}
	assertState(queue.StateActivating)
	if err := mgr.SetProcessing(ctx, it); err != nil {
		t.Fatalf("SetProcessing: %v", err)
	}
	assertState(queue.StateProcessing)

	n, err := mgr.SetAllToPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("SetAllToPending: %d %v", n, err)
	}
	pending, err := mgr.PendingItems(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].Fingerprint != it.Fingerprint {
		t.Fatalf("PendingItems: %+v %v", pending, err)
	}

	if err := mgr.Clear(ctx, it); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	assertState("")

	_, _ = mgr.Save(ctx, "email", "a")
	_, _ = mgr.Save(ctx, "email", "b")
	removed, err := mgr.ClearAll(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("ClearAll: %d %v", removed, err)
	}
}
