package cache

import (
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	c := New[int, string](time.Minute)
	c.Set(1, "fresh", time.Now().Add(time.Minute))
	c.Set(2, "stale", time.Now().Add(-time.Second))

	if v, ok := c.Get(1); !ok || v != "fresh" {
		t.Errorf("Get(1) = %q, %v", v, ok)
	}
	if _, ok := c.Get(2); ok {
		t.Error("expired entry returned")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, expired entry not dropped", c.Len())
	}
	if _, ok := c.Get(3); ok {
		t.Error("missing entry returned")
	}
}

func TestCachePutUsesTTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New[string, int](time.Minute)
	c.now = func() time.Time { return now }

	c.Put("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry expired early")
	}
	now = now.Add(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("entry outlived its TTL")
	}
}
