package cache

import (
	"context"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
// A miss is (nil, false, nil).
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Layered reads L1 before L2 and writes through both.
type Layered struct {
	l1 BytesCache
	l2 BytesCache
	// l1TTL bounds how long an L2 hit stays in L1.
	l1TTL time.Duration
}

func NewLayered(l1, l2 BytesCache, l1TTL time.Duration) *Layered {
	return &Layered{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (c *Layered) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, _ := c.l1.GetBytes(ctx, key); ok {
		return b, true, nil
	}
	b, ok, err := c.l2.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.l1.SetBytes(ctx, key, b, c.l1TTL)
	return b, true, nil
}

func (c *Layered) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	l1TTL := ttl
	if c.l1TTL > 0 && (l1TTL <= 0 || c.l1TTL < l1TTL) {
		l1TTL = c.l1TTL
	}
	return c.l1.SetBytes(ctx, key, value, l1TTL)
}
