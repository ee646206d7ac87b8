package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"localqueue/internal/queue"
	"localqueue/internal/testsupport"
)

func TestOpenRejectsSchemaVersionMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := queue.Open(cfg); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("LOCALQUEUE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOCALQUEUE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := queue.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	it := queue.WorkItem{Fingerprint: -42, CreatedAt: 5, WorkType: "email", Payload: "hello"}
	if err := store.Insert(ctx, it, queue.StatePending); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, it, queue.StatePending); !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := store.UpdateState(ctx, it.Fingerprint, queue.StateProcessing); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	state, ok, err := store.StateOf(ctx, it.Fingerprint)
	if err != nil || !ok || state != queue.StateProcessing {
		t.Fatalf("StateOf: %q %v %v", state, ok, err)
	}
	if store.Driver() != "postgres" {
		t.Fatalf("unexpected driver %q", store.Driver())
	}
	if err := store.Delete(ctx, it.Fingerprint); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
