package cache

import (
	"context"
	"testing"
	"time"
)

type cachedResult struct {
	Symbol string
	Count  int
}

func TestMemoryCacheStructRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	want := cachedResult{Symbol: "BTCUSDT", Count: 3}
	if err := mc.Set(ctx, "k", want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got cachedResult
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMemoryCachePointerValue(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	want := &cachedResult{Symbol: "ETHUSDT", Count: 1}
	if err := mc.Set(ctx, "k", want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got cachedResult
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != *want {
		t.Fatalf("got %+v, want %+v", got, *want)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var got cachedResult
	if err := mc.Get(context.Background(), "absent", &got); err != ErrCacheMiss {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	if err := mc.Get(ctx, "k", &got); err != ErrCacheMiss {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", time.Minute)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", "2", time.Minute)
	time.Sleep(time.Millisecond)

	// Touch "a" so "b" becomes the least recently used entry.
	var s string
	_ = mc.Get(ctx, "a", &s)
	time.Sleep(time.Millisecond)

	_ = mc.Set(ctx, "c", "3", time.Minute)

	if err := mc.Get(ctx, "b", &s); err != ErrCacheMiss {
		t.Fatalf("expected b evicted, err = %v", err)
	}
	if err := mc.Get(ctx, "a", &s); err != nil {
		t.Fatalf("a should survive: %v", err)
	}
}
