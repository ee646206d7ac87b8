package fingerprint

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"localqueue/internal/queue"
)

// DefaultCacheSize bounds how many per-work-type hash functions stay warm.
const DefaultCacheSize = 10

// Option customizes a Factory.
type Option func(*Factory)

// WithClock overrides the time source used for CreatedAt.
func WithClock(clock func() time.Time) Option {
	return func(f *Factory) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// Factory derives work item fingerprints. Each work type gets its own keyed
// HMAC-SHA512; the fingerprint is the first eight digest bytes read as a
// little-endian int64. Keyed hashers are pooled per work type and the pools
// are held in a bounded LRU, so eviction only costs a re-derivation.
type Factory struct {
	clock func() time.Time
	cache *lru.Cache[string, *keyedHasher]
}

type keyedHasher struct {
	pool sync.Pool
}

func newKeyedHasher(workType string) *keyedHasher {
	key := []byte(workType)
	return &keyedHasher{pool: sync.Pool{
		New: func() any { return hmac.New(sha512.New, key) },
	}}
}

func (k *keyedHasher) sum(payload string) int64 {
	h := k.pool.Get().(hash.Hash)
	h.Reset()
	_, _ = h.Write([]byte(payload))
	var digest [sha512.Size]byte
	out := h.Sum(digest[:0])
	k.pool.Put(h)
	return int64(binary.LittleEndian.Uint64(out[:8]))
}

// NewFactory builds a Factory whose hasher cache holds cacheSize work types.
// A non-positive size selects DefaultCacheSize.
func NewFactory(cacheSize int, opts ...Option) (*Factory, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *keyedHasher](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("fingerprint cache: %w", err)
	}
	f := &Factory{clock: time.Now, cache: cache}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fingerprint returns the dedup key for (workType, payload).
func (f *Factory) Fingerprint(workType, payload string) int64 {
	return f.hasherFor(workType).sum(payload)
}

// Create builds an immutable WorkItem stamped with the factory clock.
func (f *Factory) Create(workType, payload string) queue.WorkItem {
	return queue.WorkItem{
		Fingerprint: f.Fingerprint(workType, payload),
		CreatedAt:   f.clock().UnixMilli(),
		WorkType:    workType,
		Payload:     payload,
	}
}

func (f *Factory) hasherFor(workType string) *keyedHasher {
	if h, ok := f.cache.Get(workType); ok {
		return h
	}
	h := newKeyedHasher(workType)
	// A concurrent caller may have raced us; keep whichever landed first.
	if prev, ok, _ := f.cache.PeekOrAdd(workType, h); ok {
		return prev
	}
	return h
}

// CachedWorkTypes reports how many work types currently have a warm hasher.
func (f *Factory) CachedWorkTypes() int {
	return f.cache.Len()
}
