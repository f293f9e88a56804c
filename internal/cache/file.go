// Local file tier: shard directory fan-out by the first two hex characters
// of the fingerprint hash, each shard an append-only gob log compacted to
// latest-entry-per-fingerprint. The in-memory working set is bounded by a
// hashicorp/golang-lru/v2 cache sized off the configured max-byte budget —
// golang-lru is wired here as the in-process LRU index over already-loaded
// shard entries, not as the on-disk encoding itself (see SPEC_FULL.md §4.5).
package cache

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// estimatedEntryBytes approximates an average LyricPayload's encoded size,
// used only to translate the configured byte budget into an LRU entry
// count; it doesn't need to be exact.
const estimatedEntryBytes = 4096

type logRecord struct {
	Fingerprint string
	Entry       Entry
}

type shardState struct {
	mu     sync.Mutex
	loaded bool
	path   string
}

// FileCache is the local, durable cache tier.
type FileCache struct {
	root string

	mu     sync.Mutex
	shards map[string]*shardState

	hot *lru.Cache[string, Entry]
}

// NewFile opens (creating if absent) the file cache rooted at dir, with an
// in-memory LRU sized to approximate maxBytes of working set.
func NewFile(dir string, maxBytes int64) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	capacity := int(maxBytes / estimatedEntryBytes)
	if capacity < 64 {
		capacity = 64
	}
	hot, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &FileCache{root: dir, shards: make(map[string]*shardState), hot: hot}, nil
}

func shardPrefix(fingerprintHash string) string {
	if len(fingerprintHash) < 2 {
		return "00"
	}
	return fingerprintHash[:2]
}

func (c *FileCache) shardFor(fingerprintHash string) *shardState {
	prefix := shardPrefix(fingerprintHash)
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shards[prefix]
	if !ok {
		s = &shardState{path: filepath.Join(c.root, prefix, "log.gob")}
		c.shards[prefix] = s
	}
	return s
}

// ensureLoaded replays a shard's append-only log into the hot LRU the first
// time any key in that shard is touched.
func (c *FileCache) ensureLoaded(s *shardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	s.loaded = true

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	for {
		var rec logRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		c.hot.Add(rec.Fingerprint, rec.Entry)
	}
	return nil
}

// Get returns a shard-local cached entry, replaying its log on first touch.
func (c *FileCache) Get(fingerprintHash string) (Entry, bool) {
	s := c.shardFor(fingerprintHash)
	if err := c.ensureLoaded(s); err != nil {
		return Entry{}, false
	}
	e, ok := c.hot.Get(fingerprintHash)
	if !ok {
		return Entry{}, false
	}
	ttl := DefaultHitTTL
	if e.Kind == KindNegative {
		ttl = DefaultNegativeTTL
	}
	if e.expired(ttl, time.Now()) {
		return Entry{}, false
	}
	return e, true
}

// Put appends entry to its shard's log and updates the hot LRU. The
// append-then-update ordering matches the "last-write-wins per shard,
// writers use a per-shard advisory lock" rule of §4.5.
func (c *FileCache) Put(fingerprintHash string, entry Entry) error {
	s := c.shardFor(fingerprintHash)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(logRecord{Fingerprint: fingerprintHash, Entry: entry}); err != nil {
		return err
	}
	s.loaded = true
	c.hot.Add(fingerprintHash, entry)
	return nil
}

// Invalidate drops fingerprintHash from the hot LRU; the stale log record
// is dropped on the next Compact.
func (c *FileCache) Invalidate(fingerprintHash string) {
	c.hot.Remove(fingerprintHash)
}

// Compact rewrites every shard's log to hold only its current hot-LRU
// entries, collapsing to latest-entry-per-fingerprint per §4.5. Shard logs
// under root that this process has not touched yet are replayed first, so
// every shard on disk is compacted. Entries already evicted from the LRU
// are not written back.
func (c *FileCache) Compact() error {
	if err := c.loadAllShards(); err != nil {
		return err
	}
	c.mu.Lock()
	shards := make([]*shardState, 0, len(c.shards))
	for _, s := range c.shards {
		shards = append(shards, s)
	}
	c.mu.Unlock()

	for _, s := range shards {
		if err := c.compactShard(s); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports the file cache's current footprint, for the `cache stats`
// CLI surface.
type Stats struct {
	Root       string
	EntryCount int
	Bytes      int64
}

// Stats replays every shard log under root into the hot LRU, then reports
// the LRU's entry count plus the on-disk bytes under root.
func (c *FileCache) Stats() (Stats, error) {
	if err := c.loadAllShards(); err != nil {
		return Stats{}, err
	}
	stats := Stats{Root: c.root, EntryCount: c.hot.Len()}
	err := filepath.Walk(c.root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			stats.Bytes += info.Size()
		}
		return nil
	})
	return stats, err
}

// Clear removes every shard log and purges the hot LRU, for `cache clear`.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.root); err != nil {
		return err
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return err
	}
	c.shards = make(map[string]*shardState)
	c.hot.Purge()
	return nil
}

// loadAllShards replays every shard directory found under root.
func (c *FileCache) loadAllShards() error {
	dirs, err := os.ReadDir(c.root)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if d.IsDir() {
			if err := c.ensureLoaded(c.shardFor(d.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *FileCache) compactShard(s *shardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := filepath.Base(filepath.Dir(s.path))
	tmp := s.path + ".compact.tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc := gob.NewEncoder(f)
	for _, key := range c.hot.Keys() {
		if shardPrefix(key) != prefix {
			continue
		}
		e, ok := c.hot.Peek(key)
		if !ok {
			continue
		}
		if err := enc.Encode(logRecord{Fingerprint: key, Entry: e}); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}
