package testsupport

import (
	"context"
	"testing"

	"localqueue/internal/config"
	"localqueue/internal/fingerprint"
	"localqueue/internal/logging"
	"localqueue/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewManager builds a Manager over store with a real fingerprint factory.
func NewManager(t testing.TB, cfg *config.Config, store queue.Backend, opts ...fingerprint.Option) *queue.Manager {
	t.Helper()

	factory, err := fingerprint.NewFactory(cfg.Queue.FingerprintCacheSize, opts...)
	if err != nil {
		t.Fatalf("fingerprint.NewFactory: %v", err)
	}
	return queue.NewManager(store, factory, nil, logging.NewNop())
}

// Seed inserts item in state directly, bypassing dedup.
func Seed(t testing.TB, store *queue.Store, item queue.WorkItem, state queue.State) queue.WorkItem {
	t.Helper()

	if err := store.Insert(context.Background(), item, state); err != nil {
		t.Fatalf("store.Insert(%d): %v", item.Fingerprint, err)
	}
	return item
}

// RequireState fails the test unless the item with fingerprint is in want.
// An empty want asserts the row is gone.
func RequireState(t testing.TB, store *queue.Store, fp int64, want queue.State) {
	t.Helper()

	got, ok, err := store.StateOf(context.Background(), fp)
	if err != nil {
		t.Fatalf("store.StateOf(%d): %v", fp, err)
	}
	if want == "" {
		if ok {
			t.Fatalf("expected item %d to be deleted, found %s", fp, got)
		}
		return
	}
	if !ok || got != want {
		t.Fatalf("item %d: got state %q (present=%v), want %q", fp, got, ok, want)
	}
}
