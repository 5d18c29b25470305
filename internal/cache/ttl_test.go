package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"healthsync/internal/kv"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(t *testing.T) (*TTLCache[float64], *clock, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	clk := &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	c := New[float64](store, 24*time.Hour)
	c.Now = clk.now
	return c, clk, store
}

func TestTTLCache_Boundary(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		age  time.Duration
		want bool
	}{
		{0, true},
		{23*time.Hour + 59*time.Minute, true},
		{24 * time.Hour, false},
		{24*time.Hour + time.Minute, false},
	}
	for _, tt := range tests {
		c, clk, _ := newTestCache(t)
		if err := c.Set(ctx, kv.KeyHeight, 1.8); err != nil {
			t.Fatalf("set: %v", err)
		}
		clk.t = clk.t.Add(tt.age)
		_, ok, err := c.Get(ctx, kv.KeyHeight)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ok != tt.want {
			t.Fatalf("age=%s hit=%v want=%v", tt.age, ok, tt.want)
		}
	}
}

func TestTTLCache_StaleEntryIsNotDeleted(t *testing.T) {
	ctx := context.Background()
	c, clk, store := newTestCache(t)
	_ = c.Set(ctx, kv.KeyWeight, 70.5)
	clk.t = clk.t.Add(48 * time.Hour)
	if _, ok, _ := c.Get(ctx, kv.KeyWeight); ok {
		t.Fatalf("expected miss for stale entry")
	}
	if _, found, _ := store.Get(ctx, kv.KeyWeight); !found {
		t.Fatalf("stale entry must stay in the store until overwritten")
	}
	_ = c.Set(ctx, kv.KeyWeight, 71)
	v, ok, _ := c.Get(ctx, kv.KeyWeight)
	if !ok || v != 71 {
		t.Fatalf("v=%v ok=%v want 71/true", v, ok)
	}
}

func TestTTLCache_GetOrFetch(t *testing.T) {
	ctx := context.Background()
	c, clk, _ := newTestCache(t)
	calls := 0
	fetch := func(context.Context) (float64, error) {
		calls++
		return 1.75, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(ctx, kv.KeyHeight, fetch)
		if err != nil || v != 1.75 {
			t.Fatalf("v=%v err=%v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("calls=%d want=1", calls)
	}
	clk.t = clk.t.Add(25 * time.Hour)
	if _, err := c.GetOrFetch(ctx, kv.KeyHeight, fetch); err != nil {
		t.Fatalf("err=%v", err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d want=2 after expiry", calls)
	}
}

func TestTTLCache_FailedFetchWritesNothing(t *testing.T) {
	ctx := context.Background()
	c, _, store := newTestCache(t)
	boom := errors.New("boom")
	_, err := c.GetOrFetch(ctx, kv.KeyHeight, func(context.Context) (float64, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if store.Len() != 0 {
		t.Fatalf("store len=%d want=0", store.Len())
	}
}

func TestTTLCache_EnvelopeFormat(t *testing.T) {
	ctx := context.Background()
	c, clk, store := newTestCache(t)
	_ = c.Set(ctx, kv.KeyHeight, 1.8)
	raw, _, _ := store.Get(ctx, kv.KeyHeight)
	want := `{"data":1.8,"timestamp":` + strconv.FormatInt(clk.t.UnixMilli(), 10) + `}`
	if string(raw) != want {
		t.Fatalf("raw=%s want=%s", raw, want)
	}
	_ = store.Set(ctx, kv.KeyWeight, []byte("not-json"), 0)
	if _, ok, err := c.Get(ctx, kv.KeyWeight); ok || err != nil {
		t.Fatalf("corrupt entry should be a miss, ok=%v err=%v", ok, err)
	}
}
