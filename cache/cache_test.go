package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New[[]string](10, time.Minute)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit")
	}
	c.Set("k", []string{"a", "b"})
	got, ok := c.Get("k")
	if !ok || len(got) != 2 {
		t.Fatalf("Get = %v, %v", got, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := New[int](10, time.Minute)
	defer c.Close()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len = %d after eviction", c.Len())
	}
}

func TestCapacity(t *testing.T) {
	c := New[int](2, time.Minute)
	defer c.Close()
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)
	if c.Len() != 2 {
		t.Fatalf("overwrite evicted: Len = %d", c.Len())
	}
	c.Set("c", 4)
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if v, ok := c.Get("c"); !ok || v != 4 {
		t.Errorf("newest entry missing")
	}
}

func TestDisabled(t *testing.T) {
	c := New[int](10, 0)
	c.Set("k", 1)
	if _, ok := c.Get("k"); ok {
		t.Error("zero ttl cache should never hit")
	}
	var nilCache *Cache[int]
	nilCache.Set("k", 1)
	if _, ok := nilCache.Get("k"); ok {
		t.Error("nil cache should never hit")
	}
}

func TestKey(t *testing.T) {
	if Key("Dune", "Movie", 18) == Key("Dune", "Series", 18) {
		t.Error("kind not part of key")
	}
	if Key("Dune", "Movie", 18) != Key("Dune", "Movie", 18) {
		t.Error("key not deterministic")
	}
	if Key("Dune", "Movie", 1) == Key("Dune", "Movie", 18) {
		t.Error("count not part of key")
	}
}
