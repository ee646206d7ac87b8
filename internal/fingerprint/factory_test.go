package fingerprint_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"localqueue/internal/fingerprint"
)

func newFactory(t *testing.T, size int, now time.Time) *fingerprint.Factory {
	t.Helper()
	f, err := fingerprint.NewFactory(size, fingerprint.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return f
}

func TestCreateKnownVector(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	f := newFactory(t, 0, now)

	item := f.Create("email", "hello")
	if item.Fingerprint != 8118067870207836362 {
		t.Fatalf("unexpected fingerprint %d", item.Fingerprint)
	}
	if item.CreatedAt != 1_700_000_000_123 {
		t.Fatalf("unexpected createdAt %d", item.CreatedAt)
	}
	if item.WorkType != "email" || item.Payload != "hello" {
		t.Fatalf("unexpected item %+v", item)
	}
	if !item.Created().Equal(now) {
		t.Fatalf("Created() = %s, want %s", item.Created(), now)
	}
}

func TestFingerprintDeterministicAcrossTime(t *testing.T) {
	first := newFactory(t, 0, time.UnixMilli(1))
	second := newFactory(t, 0, time.UnixMilli(99_999))

	a := first.Create("email", "hello")
	b := second.Create("email", "hello")
	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("same inputs produced %d and %d", a.Fingerprint, b.Fingerprint)
	}
	if a.CreatedAt == b.CreatedAt {
		t.Fatal("expected timestamps to follow each factory's clock")
	}
}

func TestFingerprintDistinctness(t *testing.T) {
	f := newFactory(t, 0, time.Now())

	if f.Fingerprint("email", "hello") == f.Fingerprint("email", "world") {
		t.Fatal("different payloads collided")
	}
	if f.Fingerprint("email", "hello") == f.Fingerprint("sms", "hello") {
		t.Fatal("different work types collided")
	}
	if got := f.Fingerprint("sms", "hello"); got != -530304544206211921 {
		t.Fatalf("unexpected sms fingerprint %d", got)
	}
}

func TestCacheIsBoundedAndEvictionIsTransparent(t *testing.T) {
	f := newFactory(t, 2, time.Now())

	want := f.Fingerprint("email", "world")
	for i := 0; i < 5; i++ {
		f.Fingerprint(fmt.Sprintf("type-%d", i), "payload")
	}
	if got := f.CachedWorkTypes(); got != 2 {
		t.Fatalf("expected cache bounded at 2, got %d", got)
	}
	if got := f.Fingerprint("email", "world"); got != want || got != 8725934635720912055 {
		t.Fatalf("fingerprint changed after eviction: %d vs %d", got, want)
	}
}

func TestFingerprintConcurrentUse(t *testing.T) {
	f := newFactory(t, 3, time.Now())
	want := f.Fingerprint("email", "hello")

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			workType := []string{"email", "sms", "push", "audit"}[i%4]
			got := f.Fingerprint(workType, "hello")
			if workType == "email" && got != want {
				errs <- fmt.Sprintf("goroutine %d: got %d want %d", i, got, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}
