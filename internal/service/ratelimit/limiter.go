package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key. Idle keys are pruned.
type Limiter struct {
	mu     sync.Mutex
	m      map[string]*client
	limit  rate.Limit
	burst  int
	idle   time.Duration
	now    func() time.Time
	pruned time.Time
}

// New allows rps sustained requests per key with the given burst.
func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:     make(map[string]*client),
		limit: rate.Limit(rps),
		burst: burst,
		idle:  10 * time.Minute,
		now:   time.Now,
	}
}

// Allow reports whether one request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	c, ok := l.m[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = c
	}
	c.seen = now
	if now.Sub(l.pruned) > l.idle {
		l.prune(now)
	}
	l.mu.Unlock()
	return c.lim.AllowN(now, 1)
}

func (l *Limiter) prune(now time.Time) {
	for k, c := range l.m {
		if now.Sub(c.seen) > l.idle {
			delete(l.m, k)
		}
	}
	l.pruned = now
}
