package watermark

import (
	"context"
	"errors"
	"testing"
	"time"

	"healthsync/internal/kv"
)

func TestKVStore_EmptyThenAdvance(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	s := NewKVStore(mem)
	if _, ok, err := s.Get(ctx); ok || err != nil {
		t.Fatalf("ok=%v err=%v want empty", ok, err)
	}
	w := time.Date(2026, 6, 1, 10, 15, 0, 123000000, time.UTC)
	if err := s.Advance(ctx, w); err != nil {
		t.Fatalf("advance: %v", err)
	}
	got, ok, err := s.Get(ctx)
	if err != nil || !ok || !got.Equal(w) {
		t.Fatalf("got=%v ok=%v err=%v want=%v", got, ok, err, w)
	}
	raw, _, _ := mem.Get(ctx, kv.KeyLastSync)
	if string(raw) != "2026-06-01T10:15:00.123Z" {
		t.Fatalf("raw=%q want ISO-8601", raw)
	}
}

func TestKVStore_NeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore(kv.NewMemoryStore())
	later := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	_ = s.Advance(ctx, later)
	_ = s.Advance(ctx, later.Add(-time.Hour))
	got, _, _ := s.Get(ctx)
	if !got.Equal(later) {
		t.Fatalf("watermark=%v want=%v", got, later)
	}
}

func TestKVStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	_ = mem.Set(ctx, kv.KeyLastSync, []byte("yesterday"), 0)
	_, _, err := NewKVStore(mem).Get(ctx)
	if !errors.Is(err, kv.ErrStore) {
		t.Fatalf("err=%v want kv.ErrStore", err)
	}
}
