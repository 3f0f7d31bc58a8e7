package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ppiankov/geoinfer/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("geocode", "atlanta, ga")
	b := Key("geocode", "atlanta, ga")
	c := Key("geocode", "atlanta", "ga")

	if a != b {
		t.Error("Key should be deterministic")
	}
	if a == c {
		t.Error("part boundaries should change the key")
	}
	if !strings.HasPrefix(a, "geoinfer:v1:geocode:") {
		t.Errorf("unexpected prefix: %s", a)
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get(ctx, "k"); !ok || string(got) != "v" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d", c.Len())
	}
	_ = c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("geocode", "paris")

	if err := c.Set(ctx, key, []byte(`{"lat":48.85}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := c.Get(ctx, key)
	if !ok || string(got) != `{"lat":48.85}` {
		t.Fatalf("Get() = %q, %v", got, ok)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || strings.Contains(entries[0].Name(), ":") {
		t.Errorf("unexpected files: %v", entries)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Delete of missing key should succeed, got %v", err)
	}
}

func TestDiskCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewDiskCache(t.TempDir(), time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := os.WriteFile(c.path("k"), []byte("{garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("corrupt entry should miss")
	}
}

func TestLayeredCachePromotes(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(mem, disk)

	if err := disk.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
	if _, ok := mem.Get(ctx, "k"); !ok {
		t.Error("disk hit should be promoted to memory")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewLayeredCache(NewMemoryCache(time.Minute, time.Minute))

	type point struct{ Lat, Lon float64 }
	if err := SetJSON(ctx, c, "p", point{1.5, 2.5}, 0); err != nil {
		t.Fatal(err)
	}
	var got point
	if !GetJSON(ctx, c, "p", &got) || got.Lat != 1.5 || got.Lon != 2.5 {
		t.Errorf("GetJSON() = %+v", got)
	}

	_ = c.Set(ctx, "bad", []byte("not json"), 0)
	if GetJSON(ctx, c, "bad", &got) {
		t.Error("undecodable value should miss")
	}
}

func TestRedisCache(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(srv.Addr(), "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	key := Key("llm", "prompt")
	if err := c.Set(ctx, key, []byte("answer"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get(ctx, key); !ok || string(got) != "answer" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
	if ttl := srv.TTL(key); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	_ = srv.Set("other:key", "keep")
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := c.Get(ctx, key); ok {
		t.Error("expected prefixed key to be cleared")
	}
	if !srv.Exists("other:key") {
		t.Error("keys outside the prefix must survive Clear")
	}
}

func TestRedisCacheEmptyAddress(t *testing.T) {
	if _, err := NewRedisCache("", "", 0, time.Hour); err != ErrEmptyAddress {
		t.Errorf("expected ErrEmptyAddress, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	srv := miniredis.RunT(t)

	c := New(model.CacheConfig{
		Dir:       t.TempDir(),
		MemoryTTL: time.Minute,
		DiskTTL:   time.Hour,
		RedisAddr: srv.Addr(),
	}, nil)
	defer c.Close()

	if len(c.layers) != 3 {
		t.Fatalf("expected memory, disk and redis layers, got %d", len(c.layers))
	}

	ctx := context.Background()
	if err := c.Set(ctx, Key("geocode", "x"), []byte("y"), 0); err != nil {
		t.Fatal(err)
	}
	if !srv.Exists(Key("geocode", "x")) {
		t.Error("value should reach redis")
	}
}

func TestNewFromConfigRedisDown(t *testing.T) {
	c := New(model.CacheConfig{MemoryTTL: time.Minute, RedisAddr: "127.0.0.1:1"}, nil)
	if len(c.layers) != 1 {
		t.Errorf("expected only the memory layer, got %d", len(c.layers))
	}
}
