package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0, 0)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	if err := c.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("get = %q, %v", got, ok)
	}

	if err := c.Set("k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = c.Get("k")
	if string(got) != "v2" {
		t.Errorf("overwrite lost: %q", got)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0, 0)
	_ = c.Set("k", []byte("v"), time.Minute)

	if err := c.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("entry survived delete")
	}
	if err := c.Delete("absent"); err != nil {
		t.Errorf("deleting an absent key: %v", err)
	}
}

func TestMemoryCacheClearAndLen(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0, 0)
	for i := 0; i < 5; i++ {
		_ = c.Set(fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}
	if c.Len() != 5 {
		t.Errorf("len = %d, want 5", c.Len())
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("len after clear = %d", c.Len())
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0, 0)
	_ = c.Set("k", []byte("v"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("entry survived its TTL")
	}
}

func TestMemoryCacheBoundFlushesWhenFull(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0, 3)
	for i := 0; i < 3; i++ {
		_ = c.Set(fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}

	// Re-setting an existing key at the bound does not flush.
	_ = c.Set("k0", []byte("v2"), time.Minute)
	if c.Len() != 3 {
		t.Errorf("len after overwrite = %d, want 3", c.Len())
	}

	// A new key at the bound flushes the generation first.
	_ = c.Set("k3", []byte("v"), time.Minute)
	if c.Len() != 1 {
		t.Errorf("len after bound flush = %d, want 1", c.Len())
	}
	if _, ok := c.Get("k3"); !ok {
		t.Error("newest entry missing after flush")
	}
	if _, ok := c.Get("k0"); ok {
		t.Error("old generation survived flush")
	}
}

func TestKeyStableAndPrefixed(t *testing.T) {
	a := Key("https://example.com|claim")
	b := Key("https://example.com|claim")
	other := Key("https://example.com|different")

	if a != b {
		t.Error("key not stable for identical input")
	}
	if a == other {
		t.Error("distinct inputs collided")
	}
	if len(a) <= len("factrail:v1:") || a[:len("factrail:v1:")] != "factrail:v1:" {
		t.Errorf("key = %q, want factrail:v1: prefix", a)
	}
}
