package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	_ = c.SetBytes(ctx, "k", []byte("v"), time.Minute)
	_ = c.SetBytes(ctx, "forever", []byte("x"), 0)
	if b, ok, _ := c.GetBytes(ctx, "k"); !ok || string(b) != "v" {
		t.Fatalf("expected hit")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.GetBytes(ctx, "k"); ok {
		t.Fatalf("expected expiry")
	}
	if _, ok, _ := c.GetBytes(ctx, "forever"); !ok {
		t.Fatalf("zero ttl must not expire")
	}
}

func TestTTLCachePurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }
	_ = c.SetBytes(ctx, "a", []byte("1"), time.Second)
	_ = c.SetBytes(ctx, "b", []byte("2"), time.Hour)
	now = now.Add(time.Minute)
	if n := c.Purge(); n != 1 || c.Len() != 1 {
		t.Fatalf("purged=%d len=%d", n, c.Len())
	}
}

type failingCache struct{ err error }

func (f failingCache) GetBytes(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.err
}

func (f failingCache) SetBytes(context.Context, string, []byte, time.Duration) error { return f.err }

func TestLayeredCacheBackfill(t *testing.T) {
	ctx := context.Background()
	local, shared := NewTTLCache(), NewTTLCache()
	c := NewLayeredCache(local, shared, time.Minute)

	_ = shared.SetBytes(ctx, "k", []byte("v"), time.Hour)
	if b, ok, err := c.GetBytes(ctx, "k"); err != nil || !ok || string(b) != "v" {
		t.Fatalf("expected shared hit: %q %v %v", b, ok, err)
	}
	if _, ok, _ := local.GetBytes(ctx, "k"); !ok {
		t.Fatalf("expected local back-fill")
	}
}

func TestLayeredCacheSharedFailure(t *testing.T) {
	ctx := context.Background()
	local := NewTTLCache()
	boom := errors.New("redis down")
	c := NewLayeredCache(local, failingCache{err: boom}, time.Minute)

	if err := c.SetBytes(ctx, "k", []byte("v"), time.Hour); !errors.Is(err, boom) {
		t.Fatalf("expected shared error, got %v", err)
	}
	if b, ok, err := c.GetBytes(ctx, "k"); err != nil || !ok || string(b) != "v" {
		t.Fatalf("local layer must still serve: %q %v %v", b, ok, err)
	}
	if _, _, err := c.GetBytes(ctx, "missing"); !errors.Is(err, boom) {
		t.Fatalf("expected shared error on miss, got %v", err)
	}
}
