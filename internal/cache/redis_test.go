// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func newRedisTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedis(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheSetGet(t *testing.T) {
	c, _ := newRedisTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "post:7", []byte(`{"id":7}`), time.Minute)

	val, ok := c.Get(ctx, "post:7")
	if !ok {
		t.Fatal("Get returned miss for freshly set key")
	}
	if string(val) != `{"id":7}` {
		t.Errorf("Get = %q, want %q", val, `{"id":7}`)
	}
}

func TestRedisCacheExpiration(t *testing.T) {
	c, mr := newRedisTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "short", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expired entry still returned")
	}
}

func TestRedisCacheDelete(t *testing.T) {
	c, _ := newRedisTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("deleted entry still returned")
	}
}

func TestRedisCacheClearScopedToPrefix(t *testing.T) {
	c, mr := newRedisTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	// A foreign key outside the cache prefix must survive Clear.
	if err := mr.Set("minipress:trending", "1"); err != nil {
		t.Fatalf("seed foreign key: %v", err)
	}

	c.Clear(ctx)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("cleared entry still returned")
	}
	if !mr.Exists("minipress:trending") {
		t.Error("Clear removed a key outside the cache prefix")
	}
}

func TestRedisCacheStats(t *testing.T) {
	c, _ := newRedisTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Get(ctx, "a")
	c.Get(ctx, "missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 set", stats)
	}
	if stats.CurrentSize != 1 {
		t.Errorf("CurrentSize = %d, want 1", stats.CurrentSize)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	if _, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop()); err == nil {
		t.Fatal("NewRedis against closed port succeeded, want error")
	}
}
