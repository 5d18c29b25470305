// Package watermark persists the instant through which background sync has completed.
package watermark

import (
	"context"
	"fmt"
	"strings"
	"time"

	"healthsync/internal/kv"
)

type Store interface {
	// Get returns the watermark, or ok=false when no sync has completed yet.
	Get(ctx context.Context) (t time.Time, ok bool, err error)
	// Advance moves the watermark forward to t. It never moves it backwards.
	Advance(ctx context.Context, t time.Time) error
}

// KVStore keeps the watermark as an ISO-8601 instant under kv.KeyLastSync.
type KVStore struct {
	KV  kv.Store
	Key string
}

func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{KV: store, Key: kv.KeyLastSync}
}

func (s *KVStore) key() string {
	if s.Key == "" {
		return kv.KeyLastSync
	}
	return s.Key
}

func (s *KVStore) Get(ctx context.Context) (time.Time, bool, error) {
	raw, found, err := s.KV.Get(ctx, s.key())
	if err != nil {
		return time.Time{}, false, err
	}
	value := strings.TrimSpace(string(raw))
	if !found || value == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: parse %s=%q: %v", kv.ErrStore, s.key(), value, err)
	}
	return t, true, nil
}

func (s *KVStore) Advance(ctx context.Context, t time.Time) error {
	current, ok, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if ok && current.After(t) {
		return nil
	}
	return s.KV.Set(ctx, s.key(), []byte(t.UTC().Format(time.RFC3339Nano)), 0)
}
