package backend

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nexus/clock"
)

const (
	DefaultTTL      = 5 * time.Minute
	cleanupInterval = 5 * time.Minute
)

type entry struct {
	value  any
	expiry time.Time
}

// Cache holds decoded responses until their TTL runs out.
type Cache struct {
	clk clock.Clock

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache(clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{clk: clk, entries: map[string]entry{}}
}

// Key joins a URL with its JSON-encoded parameters.
func Key(url string, params any) string {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return url
	}
	return url + ":" + string(b)
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clk.Now().After(e.expiry) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value for ttl, or DefaultTTL when ttl is not positive.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiry: c.clk.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Cleanup drops expired entries and returns how many went.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()
	n := 0
	for k, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartCleanup sweeps expired entries every five minutes until ctx ends.
func (c *Cache) StartCleanup(ctx context.Context) {
	var tick func()
	var t clock.Timer
	var mu sync.Mutex
	tick = func() {
		if ctx.Err() != nil {
			return
		}
		c.Cleanup()
		mu.Lock()
		t = c.clk.AfterFunc(cleanupInterval, tick)
		mu.Unlock()
	}
	mu.Lock()
	t = c.clk.AfterFunc(cleanupInterval, tick)
	mu.Unlock()
	go func() {
		<-ctx.Done()
		mu.Lock()
		t.Stop()
		mu.Unlock()
	}()
}
