package cache

import (
	"context"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LayeredCache reads through a fast local layer before a shared one and
// back-fills the local layer on shared hits.
type LayeredCache struct {
	local    BytesCache
	shared   BytesCache
	localTTL time.Duration
}

// NewLayeredCache builds a two-level cache. localTTL bounds how long a shared
// value is kept locally after a back-fill.
func NewLayeredCache(local, shared BytesCache, localTTL time.Duration) *LayeredCache {
	return &LayeredCache{local: local, shared: shared, localTTL: localTTL}
}

func (c *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, err := c.local.GetBytes(ctx, key); err == nil && ok {
		return b, true, nil
	}
	b, ok, err := c.shared.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.local.SetBytes(ctx, key, b, c.localTTL)
	return b, true, nil
}

// SetBytes writes both layers. A shared-layer failure is returned after the
// local write so the value is still served from this process.
func (c *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	localTTL := c.localTTL
	if ttl > 0 && (localTTL <= 0 || ttl < localTTL) {
		localTTL = ttl
	}
	if err := c.local.SetBytes(ctx, key, value, localTTL); err != nil {
		return err
	}
	return c.shared.SetBytes(ctx, key, value, ttl)
}
