package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	v   []byte
	exp time.Time
}

// TTLCache is an in-process byte cache bounded by entry count.
type TTLCache struct {
	mu      sync.RWMutex
	m       map[string]entry
	maxSize int
	now     func() time.Time
}

func NewTTLCache(maxSize int) *TTLCache {
	return &TTLCache{m: make(map[string]entry), maxSize: maxSize, now: time.Now}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	now := c.now()
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.maxSize > 0 && len(c.m) >= c.maxSize {
		c.evict(now)
	}
	c.m[key] = entry{v: value, exp: exp}
	return nil
}

// evict drops expired entries, or an arbitrary one when none has expired.
func (c *TTLCache) evict(now time.Time) {
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
	if len(c.m) < c.maxSize {
		return
	}
	for k := range c.m {
		delete(c.m, k)
		return
	}
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
