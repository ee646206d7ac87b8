package queueaccess_test

import (
	"context"
	"errors"
	"testing"

	"localqueue/internal/api"
	"localqueue/internal/ipc"
	"localqueue/internal/logging"
	"localqueue/internal/metrics"
	"localqueue/internal/queueaccess"
	"localqueue/internal/testsupport"
)

func TestOpenWithFallbackUsesStoreWhenDaemonIsDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dialed := false
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) {
			dialed = true
			return nil, errors.New("connection refused")
		},
		func() (*api.Queue, error) {
			return api.Open(cfg, metrics.NewNop(), logging.NewNop())
		},
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()
	if !dialed {
		t.Fatal("expected IPC to be tried first")
	}
	access := session.Access
	if access.Remote() {
		t.Fatal("expected direct store access")
	}
	ctx := context.Background()

	first, err := access.Enqueue(ctx, "email", "hello")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first.Fingerprint != 8118067870207836362 || first.State != "PENDING" {
		t.Fatalf("unexpected item %+v", first)
	}
	if _, err := access.Enqueue(ctx, "email", "hello"); err != nil {
		t.Fatalf("duplicate Enqueue: %v", err)
	}

	stats, err := access.Stats(ctx)
	if err != nil || stats["PENDING"] != 1 {
		t.Fatalf("Stats: %+v %v", stats, err)
	}
	items, err := access.List(ctx, 0, []string{"pending"})
	if err != nil || len(items) != 1 {
		t.Fatalf("List: %+v %v", items, err)
	}
	if _, err := access.List(ctx, 0, []string{"bogus"}); err == nil {
		t.Fatal("expected unknown state to be rejected")
	}
	if _, err := access.Describe(ctx, 1); err == nil {
		t.Fatal("expected missing item to be an error")
	}
	removed, err := access.ClearItem(ctx, first.Fingerprint)
	if err != nil || !removed {
		t.Fatalf("ClearItem: %v %v", removed, err)
	}
	n, err := access.ClearAll(ctx)
	if err != nil || n != 0 {
		t.Fatalf("ClearAll: %d %v", n, err)
	}
}

func TestOpenWithFallbackRequiresOpener(t *testing.T) {
	if _, err := queueaccess.OpenWithFallback(nil, nil); err == nil {
		t.Fatal("expected error without any opener")
	}
}
