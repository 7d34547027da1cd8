package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// TestInMemoryCache_GetSet verifies that Set stores entries and Get returns
// them with the same data and expiry.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	expires := time.Now().Add(time.Minute)
	val := Entry{Data: json.RawMessage(`{"ok":true}`), Expires: expires}
	if err := c.Set(ctx, "k", val); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got.Data) != `{"ok":true}` || !got.Expires.Equal(expires) {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Get_SameBackingArray verifies that repeated hits return
// the stored slice rather than a copy.
func TestInMemoryCache_Get_SameBackingArray(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	_ = c.Set(ctx, "k", Entry{Data: json.RawMessage(`{"n":1}`), Expires: time.Now().Add(time.Minute)})

	a, _, _ := c.Get(ctx, "k")
	b, _, _ := c.Get(ctx, "k")
	if &a.Data[0] != &b.Data[0] {
		t.Error("Get() returned copies; want the stored slice")
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when the key
// does not exist.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_KeepsStale verifies that expired entries stay in the
// map; freshness is decided by the caller.
func TestInMemoryCache_Get_KeepsStale(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	past := time.Now().Add(-time.Second)
	_ = c.Set(ctx, "k", Entry{Data: json.RawMessage(`1`), Expires: past})

	got, ok, _ := c.Get(ctx, "k")
	if !ok {
		t.Fatal("Get() ok = false for stale entry, want true")
	}
	if got.Fresh(time.Now()) {
		t.Error("Fresh() = true for expired entry")
	}
}

// TestInMemoryCache_SetOverwrites verifies that Set replaces an existing entry.
func TestInMemoryCache_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	_ = c.Set(ctx, "k", Entry{Data: json.RawMessage(`1`)})
	_ = c.Set(ctx, "k", Entry{Data: json.RawMessage(`2`)})

	got, _, _ := c.Get(ctx, "k")
	if string(got.Data) != "2" {
		t.Errorf("Get().Data = %s, want 2", got.Data)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

// TestInMemoryCache_Reset verifies that Reset removes every entry.
func TestInMemoryCache_Reset(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	_ = c.Set(ctx, "a", Entry{Data: json.RawMessage(`1`)})
	_ = c.Set(ctx, "b", Entry{Data: json.RawMessage(`2`)})

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("Get(a) ok = true after Reset")
	}
}

// TestInMemoryCache_Concurrent exercises parallel readers and writers; run
// with -race to check synchronization.
func TestInMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, "k", Entry{Data: json.RawMessage(`1`), Expires: time.Now()})
				_, _, _ = c.Get(ctx, "k")
				if j%50 == 0 {
					_ = c.Reset(ctx)
				}
			}
		}(i)
	}
	wg.Wait()
}

// TestEntry_Fresh verifies the strict comparison: an entry expiring exactly
// now is stale.
func TestEntry_Fresh(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"future", now.Add(time.Millisecond), true},
		{"exactly now", now, false},
		{"past", now.Add(-time.Millisecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Entry{Expires: tt.expires}).Fresh(now); got != tt.want {
				t.Errorf("Fresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEncodeDecodeEntry verifies the shared-backend wire form keeps data and
// millisecond expiry.
func TestEncodeDecodeEntry(t *testing.T) {
	expires := time.UnixMilli(1_700_000_000_123)
	raw, err := encodeEntry(Entry{Data: json.RawMessage(`{"hourly":{}}`), Expires: expires})
	if err != nil {
		t.Fatalf("encodeEntry() error = %v", err)
	}
	got, err := decodeEntry(raw)
	if err != nil {
		t.Fatalf("decodeEntry() error = %v", err)
	}
	if string(got.Data) != `{"hourly":{}}` || !got.Expires.Equal(expires) {
		t.Errorf("decodeEntry() = %+v", got)
	}
	if _, err := decodeEntry([]byte("nope")); err == nil {
		t.Error("decodeEntry() expected error for invalid input")
	}
}

// TestBackendKey verifies hashed keys are prefixed, fixed-length and stable.
func TestBackendKey(t *testing.T) {
	k1 := backendKey("forecast:", `[["a",1]]`)
	k2 := backendKey("forecast:", `[["a",1]]`)
	k3 := backendKey("forecast:", `[["a",2]]`)
	if k1 != k2 {
		t.Error("backendKey not stable")
	}
	if k1 == k3 {
		t.Error("backendKey collided for different keys")
	}
	if len(k1) != len("forecast:")+64 {
		t.Errorf("len(backendKey) = %d", len(k1))
	}
}

// TestBackendTTL verifies rounding up to whole seconds with a one second floor.
func TestBackendTTL(t *testing.T) {
	now := time.Now()
	tests := []struct {
		left time.Duration
		want time.Duration
	}{
		{-time.Minute, time.Second},
		{500 * time.Millisecond, time.Second},
		{1500 * time.Millisecond, 2 * time.Second},
		{5 * time.Minute, 5*time.Minute + time.Second},
	}
	for _, tt := range tests {
		if got := backendTTL(Entry{Expires: now.Add(tt.left)}, now); got != tt.want {
			t.Errorf("backendTTL(%v) = %v, want %v", tt.left, got, tt.want)
		}
	}
}

// TestParseAddrs verifies comma-separated server lists are trimmed and blanks dropped.
func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" a:1 , ,b:2,")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("parseAddrs() = %v", got)
	}
}
