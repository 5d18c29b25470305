// Package kv is the persistent key-value store shared by the interactive
// pipeline and the background sync.
package kv

import (
	"context"
	"errors"
	"time"
)

// Keys used by the aggregation engine.
const (
	KeyLastSync    = "lastSync"
	KeyHealthData  = "healthData"
	KeyPermissions = "healthPermissions"
	KeyHeight      = "height"
	KeyWeight      = "weight"
)

// ErrStore wraps every backend failure so callers can classify it.
var ErrStore = errors.New("kv store error")

// Store is a byte-oriented key-value store. A ttl <= 0 means the value never expires.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Prefixed namespaces every key of the wrapped store.
type Prefixed struct {
	Store  Store
	Prefix string
}

func (p Prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.Store.Get(ctx, p.Prefix+key)
}

func (p Prefixed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.Store.Set(ctx, p.Prefix+key, value, ttl)
}

func (p Prefixed) Delete(ctx context.Context, key string) error {
	return p.Store.Delete(ctx, p.Prefix+key)
}

// WithPrefix returns s unchanged when prefix is empty.
func WithPrefix(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return Prefixed{Store: s, Prefix: prefix}
}
