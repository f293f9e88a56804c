package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache composes the two tiers of §4.5 behind a single Get/Put/Negative/
// Invalidate surface. Queries check the shared KV tier first, then the
// local file tier, matching "two logical layers queried in order".
type Cache struct {
	Shared *SharedCache // nil if not configured
	File   *FileCache

	group singleflight.Group
}

func New(shared *SharedCache, file *FileCache) *Cache {
	return &Cache{Shared: shared, File: file}
}

// Get probes both tiers in order. It never returns an error: a connectivity
// fault on the shared tier degrades to a miss, per §4.5.
func (c *Cache) Get(ctx context.Context, fingerprintHash string) (Entry, bool) {
	if e, ok := c.Shared.Get(ctx, fingerprintHash); ok {
		return e, true
	}
	return c.File.Get(fingerprintHash)
}

// Put writes entry to both tiers — the "publish to upper tiers" step a
// Resolver hit from a deeper tier performs per §9.
func (c *Cache) Put(ctx context.Context, fingerprintHash string, payload Payload, ttl time.Duration) {
	entry := Entry{Kind: KindHit, Payload: payload, CreatedAt: time.Now()}
	c.Shared.Put(ctx, fingerprintHash, entry, ttl)
	_ = c.File.Put(fingerprintHash, entry)
}

// Negative writes a NegativeHit, per §4.5's negative(fingerprint, ttl).
func (c *Cache) Negative(ctx context.Context, fingerprintHash string, ttl time.Duration) {
	entry := Entry{Kind: KindNegative, CreatedAt: time.Now()}
	c.Shared.Put(ctx, fingerprintHash, entry, ttl)
	_ = c.File.Put(fingerprintHash, entry)
}

// Invalidate drops fingerprintHash from both tiers, used by --force.
func (c *Cache) Invalidate(ctx context.Context, fingerprintHash string) {
	c.Shared.Invalidate(ctx, fingerprintHash)
	c.File.Invalidate(fingerprintHash)
}

// Resolve runs fn under the fingerprint's single-flight slot: concurrent
// callers for the same fingerprint block on one in-flight call and share
// its result, satisfying §4.5/§8's single-flight invariant. The lock spans
// the entire resolver pipeline (cache probe through remote fallback), not
// just the network call, per §9.
func (c *Cache) Resolve(fingerprintHash string, fn func() (Entry, error)) (Entry, error, bool) {
	v, err, shared := c.group.Do(fingerprintHash, func() (any, error) {
		return fn()
	})
	if err != nil {
		return Entry{}, err, shared
	}
	return v.(Entry), nil, shared
}
