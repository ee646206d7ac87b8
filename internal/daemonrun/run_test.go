package daemonrun_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"localqueue/internal/daemonrun"
	"localqueue/internal/dispatch"
	"localqueue/internal/ipc"
	"localqueue/internal/queue"
	"localqueue/internal/testsupport"
)

func TestRunServesIPCUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"

	ran := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{
			Register: func(reg *dispatch.Registry) error {
				return reg.RegisterFunc("email", func(_ context.Context, item queue.WorkItem) error {
					ran <- item.Payload
					return nil
				})
			},
		})
	}()

	var client *ipc.Client
	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := ipc.Dial(cfg.Paths.SocketPath)
		if err == nil {
			client = c
			break
		}
		select {
		case err := <-done:
			t.Fatalf("Run exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon socket never appeared: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer client.Close()

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "localqueue.pid")); err != nil {
		t.Fatalf("expected pid file: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "localqueue.log")); err != nil {
		t.Fatalf("expected current log pointer: %v", err)
	}

	if _, err := client.Enqueue("email", "via-socket"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case payload := <-ran:
		if payload != "via-socket" {
			t.Fatalf("handler got %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not run")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(cfg.Paths.SocketPath); !os.IsNotExist(err) {
		t.Fatalf("expected socket to be removed, got %v", err)
	}
}
