// Package cache keeps slowly-changing metrics (height, weight) in the
// persistent kv store with a fixed time-to-live.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"healthsync/internal/kv"
)

const DefaultTTL = 24 * time.Hour

// Entry is the stored envelope. Timestamp is Unix milliseconds.
type Entry[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// TTLCache is valid for an entry while now - writtenAt < TTL. Expired entries
// are ignored on read and left in place until the next Set overwrites them.
type TTLCache[T any] struct {
	Store kv.Store
	TTL   time.Duration
	Now   func() time.Time
}

func New[T any](store kv.Store, ttl time.Duration) *TTLCache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache[T]{Store: store, TTL: ttl, Now: time.Now}
}

func (c *TTLCache[T]) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Get returns the cached value when present and fresh. An undecodable entry is a miss.
func (c *TTLCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, found, err := c.Store.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !found || len(raw) == 0 {
		return zero, false, nil
	}
	var e Entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		return zero, false, nil
	}
	writtenAt := time.UnixMilli(e.Timestamp)
	if c.now().Sub(writtenAt) >= c.TTL {
		return zero, false, nil
	}
	return e.Data, true, nil
}

// Set overwrites key with value stamped at the current time.
func (c *TTLCache[T]) Set(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(Entry[T]{Data: value, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("%w: encode cache entry %s: %v", kv.ErrStore, key, err)
	}
	return c.Store.Set(ctx, key, raw, 0)
}

// GetOrFetch serves key from the cache, or calls fetch on a miss and writes the
// fresh value back. A failed fetch writes nothing.
func (c *TTLCache[T]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok, err := c.Get(ctx, key); err != nil {
		var zero T
		return zero, err
	} else if ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
