package toolcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeCaller counts invocations and returns canned responses.
type fakeCaller struct {
	calls int
	raw   string
	err   error
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.raw, nil
}

func TestGetOrCallRoundTrip(t *testing.T) {
	caller := &fakeCaller{raw: `{"geocodes":[{"location":"113.5,22.3","formatted_address":"珠海市"}]}`}
	cache := New(caller, nil)

	args := map[string]any{"address": "珠海"}
	first, err := cache.GetOrCall(context.Background(), "maps_geo", args)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := cache.GetOrCall(context.Background(), "maps_geo", args)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if caller.calls != 1 {
		t.Errorf("underlying calls = %d, want 1", caller.calls)
	}
	if first.Compact() != second.Compact() {
		t.Errorf("cached result differs: %q vs %q", first.Compact(), second.Compact())
	}
	if cache.Size() != 1 {
		t.Errorf("Size = %d, want 1", cache.Size())
	}
}

func TestGetOrCallDistinctArguments(t *testing.T) {
	caller := &fakeCaller{raw: "ok"}
	cache := New(caller, nil)

	_, _ = cache.GetOrCall(context.Background(), "maps_geo", map[string]any{"address": "珠海"})
	_, _ = cache.GetOrCall(context.Background(), "maps_geo", map[string]any{"address": "深圳"})

	if caller.calls != 2 {
		t.Errorf("underlying calls = %d, want 2 for distinct arguments", caller.calls)
	}
}

func TestGetOrCallStaleEntryRefetches(t *testing.T) {
	now := time.Now()
	caller := &fakeCaller{raw: "ok"}
	cache := New(caller, nil,
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	args := map[string]any{"city": "440400"}
	if _, err := cache.GetOrCall(context.Background(), "maps_weather", args); err != nil {
		t.Fatal(err)
	}

	// Within the TTL: served from cache.
	now = now.Add(59 * time.Minute)
	if _, err := cache.GetOrCall(context.Background(), "maps_weather", args); err != nil {
		t.Fatal(err)
	}
	if caller.calls != 1 {
		t.Fatalf("underlying calls = %d, want 1 before expiry", caller.calls)
	}

	// Past the TTL: fresh invocation.
	now = now.Add(2 * time.Minute)
	if _, err := cache.GetOrCall(context.Background(), "maps_weather", args); err != nil {
		t.Fatal(err)
	}
	if caller.calls != 2 {
		t.Errorf("underlying calls = %d, want 2 after expiry", caller.calls)
	}
}

func TestGetOrCallErrorNotCached(t *testing.T) {
	caller := &fakeCaller{err: errors.New("tool host down")}
	cache := New(caller, nil)

	args := map[string]any{"address": "珠海"}
	if _, err := cache.GetOrCall(context.Background(), "maps_geo", args); err == nil {
		t.Fatal("expected error")
	}
	if cache.Size() != 0 {
		t.Fatalf("Size = %d, failed call must not be cached", cache.Size())
	}

	// Recovery: the next call goes through and is cached.
	caller.err = nil
	caller.raw = "ok"
	if _, err := cache.GetOrCall(context.Background(), "maps_geo", args); err != nil {
		t.Fatal(err)
	}
	if caller.calls != 2 {
		t.Errorf("underlying calls = %d, want 2", caller.calls)
	}
	if cache.Size() != 1 {
		t.Errorf("Size = %d, want 1", cache.Size())
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := cacheKey("maps_geo", map[string]any{"address": "珠海", "city": "广东"})
	b := cacheKey("maps_geo", map[string]any{"city": "广东", "address": "珠海"})
	if a != b {
		t.Errorf("keys differ for identical argument sets: %q vs %q", a, b)
	}
}
