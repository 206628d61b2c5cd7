package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Store is the small surface shared by the in-process and redis caches.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr bumps a counter, starting its ttl window on first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Cache is the in-process Store. Expired entries are dropped when read and,
// at most once per sweepEvery, by a full sweep on the next write.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
	now func() time.Time

	sweepEvery time.Duration
	lastSweep  time.Time
}

type entry struct {
	val []byte
	exp time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Cache{
		ttl:        ttl,
		m:          make(map[string]entry),
		now:        time.Now,
		sweepEvery: time.Minute,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	return e.val, true, nil
}

func (c *Cache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()

	c.mu.Lock()
	c.sweepLocked(now)
	c.m[key] = entry{val: val, exp: now.Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(now)

	e, ok := c.m[key]
	if !ok || now.After(e.exp) {
		c.m[key] = entry{val: []byte("1"), exp: now.Add(ttl)}
		return 1, nil
	}

	n, err := strconv.ParseInt(string(e.val), 10, 64)
	if err != nil {
		n = 0
	}
	n++
	e.val = []byte(strconv.FormatInt(n, 10))
	c.m[key] = e
	return n, nil
}

// sweepLocked drops every expired entry; mu must be held for writing.
func (c *Cache) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.sweepEvery {
		return
	}
	c.lastSweep = now

	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
		}
	}
}

// Len counts stored entries, expired ones not yet swept included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}
