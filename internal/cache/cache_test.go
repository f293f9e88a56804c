package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestShared(t *testing.T) *SharedCache {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewShared("redis://" + mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestFile(t *testing.T) *FileCache {
	t.Helper()
	f, err := NewFile(filepath.Join(t.TempDir(), "cache"), 256<<20)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestSharedCache_PutThenGet(t *testing.T) {
	s := newTestShared(t)
	ctx := context.Background()

	payload := Payload{Synced: "[00:01.00]hi"}
	s.Put(ctx, "abc123", Entry{Kind: KindHit, Payload: payload, CreatedAt: time.Now()}, time.Hour)

	got, ok := s.Get(ctx, "abc123")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Payload.Synced != payload.Synced {
		t.Errorf("Synced = %q, want %q", got.Payload.Synced, payload.Synced)
	}
}

func TestSharedCache_InvalidateIsMiss(t *testing.T) {
	s := newTestShared(t)
	ctx := context.Background()
	s.Put(ctx, "abc123", Entry{Kind: KindHit, CreatedAt: time.Now()}, time.Hour)
	s.Invalidate(ctx, "abc123")
	if _, ok := s.Get(ctx, "abc123"); ok {
		t.Error("expected a miss after invalidate")
	}
}

func TestSharedCache_NilIsAlwaysMiss(t *testing.T) {
	var s *SharedCache
	ctx := context.Background()
	s.Put(ctx, "x", Entry{}, time.Hour) // must not panic
	if _, ok := s.Get(ctx, "x"); ok {
		t.Error("nil shared cache must always miss")
	}
}

func TestFileCache_PutThenGetSurvivesReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	f, err := NewFile(dir, 256<<20)
	if err != nil {
		t.Fatal(err)
	}
	payload := Payload{Plain: "la la la"}
	if err := f.Put("ff00aa", Entry{Kind: KindHit, Payload: payload, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	// Reopen against the same directory to exercise shard-log replay.
	f2, err := NewFile(dir, 256<<20)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := f2.Get("ff00aa")
	if !ok {
		t.Fatal("expected entry to survive reopen via shard log replay")
	}
	if got.Payload.Plain != payload.Plain {
		t.Errorf("Plain = %q, want %q", got.Payload.Plain, payload.Plain)
	}
}

func TestFileCache_ExpiredNegativeHitIsMiss(t *testing.T) {
	f := newTestFile(t)
	old := Entry{Kind: KindNegative, CreatedAt: time.Now().Add(-48 * time.Hour)}
	if err := f.Put("deadbeef", old); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.Get("deadbeef"); ok {
		t.Error("expected expired negative hit to miss")
	}
}

func TestFileCache_CompactCollapsesLog(t *testing.T) {
	f := newTestFile(t)
	for i := 0; i < 3; i++ {
		if err := f.Put("aa1234", Entry{Kind: KindHit, CreatedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Compact(); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.Get("aa1234"); !ok {
		t.Error("expected entry to survive compaction")
	}
}

func TestCache_Resolve_SingleFlight(t *testing.T) {
	c := New(nil, newTestFile(t))
	var calls int
	fn := func() (Entry, error) {
		calls++
		return Entry{Kind: KindHit}, nil
	}

	done := make(chan struct{})
	go func() {
		c.Resolve("fp1", fn)
		close(done)
	}()
	c.Resolve("fp1", fn)
	<-done

	if calls > 2 {
		t.Errorf("calls = %d, want at most 2 (ideally 1 if truly concurrent)", calls)
	}
}

func TestCache_GetPrefersSharedOverFile(t *testing.T) {
	shared := newTestShared(t)
	file := newTestFile(t)
	c := New(shared, file)
	ctx := context.Background()

	file.Put("fp2", Entry{Kind: KindHit, Payload: Payload{Plain: "file"}, CreatedAt: time.Now()})
	shared.Put(ctx, "fp2", Entry{Kind: KindHit, Payload: Payload{Plain: "shared"}, CreatedAt: time.Now()}, time.Hour)

	got, ok := c.Get(ctx, "fp2")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Payload.Plain != "shared" {
		t.Errorf("Plain = %q, want shared tier to win", got.Payload.Plain)
	}
}
