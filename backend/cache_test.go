package backend

import (
	"context"
	"testing"
	"time"

	"nexus/clock"
)

func TestCacheKey(t *testing.T) {
	if got := Key("http://x/api/a", nil); got != "http://x/api/a:{}" {
		t.Errorf("key = %q", got)
	}
	if got := Key("http://x/api/a", map[string]string{"id": "7"}); got != `http://x/api/a:{"id":"7"}` {
		t.Errorf("key = %q", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	clk := clock.NewFake()
	c := NewCache(clk)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Fatalf("get a = %v, %v", v, ok)
	}
	clk.Advance(time.Minute + time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry served")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("default TTL entry expired early")
	}

	clk.Advance(DefaultTTL)
	c.Set("c", 3, time.Hour)
	if n := c.Cleanup(); n != 1 {
		t.Fatalf("cleanup removed %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("clear kept entries")
	}
}

func TestCacheBackgroundCleanup(t *testing.T) {
	clk := clock.NewFake()
	c := NewCache(clk)
	ctx, cancel := context.WithCancel(context.Background())
	c.StartCleanup(ctx)

	c.Set("short", 1, time.Minute)
	clk.Advance(cleanupInterval)
	if c.Len() != 0 {
		t.Fatal("sweep did not run")
	}
	c.Set("again", 1, time.Minute)
	clk.Advance(cleanupInterval)
	if c.Len() != 0 {
		t.Fatal("sweep did not re-arm")
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for clk.Pending() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if clk.Pending() != 0 {
		t.Fatal("sweep still scheduled after cancel")
	}
}
