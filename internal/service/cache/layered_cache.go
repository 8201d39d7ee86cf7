package cache

import (
	"context"
	"io"
	"time"
)

// LayeredCache is a two-level cache: a process-local L1 in front of a shared L2.
type LayeredCache struct {
	l1    BytesCache
	l2    BytesCache
	l1TTL time.Duration
}

// NewLayeredCache caps L1 entries at l1TTL so replicas converge on L2.
func NewLayeredCache(l1, l2 BytesCache, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (lc *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, err := lc.l1.GetBytes(ctx, key); err == nil && ok {
		return b, true, nil
	}
	b, ok, err := lc.l2.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = lc.l1.SetBytes(ctx, key, b, lc.l1TTL)
	return b, true, nil
}

// SetBytes writes through: L2 first, then L1.
func (lc *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := lc.l2.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	l1TTL := lc.l1TTL
	if ttl > 0 && (l1TTL <= 0 || ttl < l1TTL) {
		l1TTL = ttl
	}
	_ = lc.l1.SetBytes(ctx, key, value, l1TTL)
	return nil
}

// Health reports the shared level.
func (lc *LayeredCache) Health(ctx context.Context) error {
	if hc, ok := lc.l2.(interface{ Health(context.Context) error }); ok {
		return hc.Health(ctx)
	}
	return nil
}

// RunJanitor purges the local level until ctx is done.
func (lc *LayeredCache) RunJanitor(ctx context.Context, interval time.Duration) {
	if j, ok := lc.l1.(interface {
		RunJanitor(context.Context, time.Duration)
	}); ok {
		j.RunJanitor(ctx, interval)
	}
}

func (lc *LayeredCache) Close() error {
	if c, ok := lc.l2.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
