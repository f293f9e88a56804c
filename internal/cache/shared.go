// Shared KV tier: a go-redis client namespaced the way alexander-bruun-Orb's
// queue.Service uses kvkeys + *redis.Client — try the cache, fall through to
// the next tier silently on any error, invalidate with Del on --force.
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lyricsync:fp:"

func sharedKey(fingerprintHash string) string {
	return keyPrefix + fingerprintHash
}

// wireEntry is the JSON shape stored in Redis; Entry itself isn't
// JSON-tagged since it's also the file-tier's in-memory representation.
type wireEntry struct {
	Kind      Kind      `json:"kind"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// SharedCache wraps a *redis.Client. A nil *SharedCache is valid and
// behaves as "not configured": every call is a silent miss, matching §4.5's
// "absence of the shared cache never blocks correctness".
type SharedCache struct {
	client *redis.Client
	misses *atomic.Int64
}

// NewShared builds a SharedCache from a Redis URL (redis://host:port/...).
// An empty url returns nil, meaning the shared tier is disabled.
func NewShared(url string) (*SharedCache, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &SharedCache{client: redis.NewClient(opt), misses: &atomic.Int64{}}, nil
}

func (s *SharedCache) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// MissCount reports how many shared-cache operations degraded to a miss
// due to a network/server error, for the "remote cache error... records a
// counter" requirement of §4.5.
func (s *SharedCache) MissCount() int64 {
	if s == nil {
		return 0
	}
	return s.misses.Load()
}

// Get returns (entry, true) on a hit. A connectivity error, a missing key,
// or a nil receiver all return (Entry{}, false) — the caller treats all
// three identically as "fall through to the next tier".
func (s *SharedCache) Get(ctx context.Context, fingerprintHash string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	raw, err := s.client.Get(ctx, sharedKey(fingerprintHash)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.misses.Add(1)
		}
		return Entry{}, false
	}
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		s.misses.Add(1)
		return Entry{}, false
	}
	return Entry{Kind: w.Kind, Payload: w.Payload, CreatedAt: w.CreatedAt}, true
}

// Put writes entry under fingerprintHash with the given TTL. Errors are
// swallowed: a failed write degrades correctness to "no cross-process
// cache" for this key, never to a pipeline failure.
func (s *SharedCache) Put(ctx context.Context, fingerprintHash string, entry Entry, ttl time.Duration) {
	if s == nil {
		return
	}
	b, err := json.Marshal(wireEntry{Kind: entry.Kind, Payload: entry.Payload, CreatedAt: entry.CreatedAt})
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, sharedKey(fingerprintHash), b, ttl).Err(); err != nil {
		s.misses.Add(1)
	}
}

// Invalidate removes fingerprintHash's shared entry, used by --force.
func (s *SharedCache) Invalidate(ctx context.Context, fingerprintHash string) {
	if s == nil {
		return
	}
	s.client.Del(ctx, sharedKey(fingerprintHash))
}
