// Package cache keeps recent adapter results for a short TTL.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"poolwatch/internal/provider"
)

// Store holds payloads by key.
type Store interface {
	// Get returns the payload for key and whether it was present and fresh.
	Get(ctx context.Context, key string) (provider.SharePayload, bool, error)
	Set(ctx context.Context, key string, p provider.SharePayload, ttl time.Duration) error
}

// Key derives the cache key for an account. The URL is hashed so that access
// keys and tokens never appear in the store.
func Key(kind provider.Kind, rawURL string) string {
	return fmt.Sprintf("%s:%016x", kind, xxh3.HashString(rawURL))
}

// Adapter caches successful results of the wrapped adapter for TTL. Failed
// fetches are never cached. Concurrent misses for one key share a fetch.
type Adapter struct {
	A      provider.Adapter
	Store  Store
	TTL    time.Duration
	Logger *slog.Logger

	sf singleflight.Group
}

func (c *Adapter) Kind() provider.Kind { return c.A.Kind() }

// Fetch returns the cached payload when fresh. Store errors are logged and the
// wrapped adapter is called directly.
func (c *Adapter) Fetch(ctx context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
	if c.Store == nil || c.TTL <= 0 {
		return c.A.Fetch(ctx, q)
	}

	key := Key(c.A.Kind(), q.URL)
	p, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		c.logger().Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		return p, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		p, err := c.A.Fetch(ctx, q)
		if err != nil {
			return provider.SharePayload{}, err
		}
		if err := c.Store.Set(ctx, key, p, c.TTL); err != nil {
			c.logger().Warn("cache write failed", "key", key, "error", err)
		}
		return p, nil
	})
	if err != nil {
		return provider.SharePayload{}, err
	}
	return v.(provider.SharePayload), nil
}

func (c *Adapter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
