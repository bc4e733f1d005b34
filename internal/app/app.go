// Package app wires configuration into adapters, decorators and stores. It is
// shared by the commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"poolwatch/internal/config"
	"poolwatch/internal/hashrate"
	"poolwatch/internal/httpx"
	"poolwatch/internal/logging"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/antpool"
	"poolwatch/internal/provider/btcpool"
	"poolwatch/internal/provider/cache"
	"poolwatch/internal/provider/huobipool"
	"poolwatch/internal/provider/poolin"
	"poolwatch/internal/provider/ratelimit"
	"poolwatch/internal/provider/spiderpool"
)

// HTTPClient builds the shared HTTP client from cfg.
func HTTPClient(cfg config.Config) *httpx.Client {
	c := httpx.New(time.Duration(cfg.HTTP.TimeoutSec) * time.Second)
	if cfg.HTTP.UserAgent != "" {
		c.UserAgent = cfg.HTTP.UserAgent
	}
	return c
}

// Adapters builds one adapter per provider kind, sharing hc and a normalizer
// configured with the unit policy.
func Adapters(cfg config.Config, hc provider.HTTPClient, logger *slog.Logger) (provider.Registry, error) {
	policy, err := hashrate.ParsePolicy(cfg.Units.Policy)
	if err != nil {
		return nil, err
	}
	norm := hashrate.NewNormalizer(policy, logging.Component(logger, "hashrate"))

	spiderOpts := []spiderpool.Option{
		spiderpool.WithHTTPClient(hc),
		spiderpool.WithNormalizer(norm),
		spiderpool.WithLogger(logging.Component(logger, "spiderpool")),
	}
	if u := cfg.Providers.SpiderPool.BaseURL; u != "" {
		spiderOpts = append(spiderOpts, spiderpool.WithBaseURL(u))
	}
	poolinOpts := []poolin.Option{
		poolin.WithHTTPClient(hc),
		poolin.WithNormalizer(norm),
		poolin.WithLogger(logging.Component(logger, "poolin")),
	}
	if u := cfg.Providers.Poolin.BaseURL; u != "" {
		poolinOpts = append(poolinOpts, poolin.WithBaseURL(u))
	}

	return provider.NewRegistry(
		btcpool.New(
			btcpool.WithHTTPClient(hc),
			btcpool.WithNormalizer(norm),
			btcpool.WithLogger(logging.Component(logger, "btcpool")),
		),
		spiderpool.New(spiderOpts...),
		poolin.New(poolinOpts...),
		huobipool.New(
			huobipool.WithHTTPClient(hc),
			huobipool.WithLogger(logging.Component(logger, "huobipool")),
		),
		antpool.New(
			antpool.WithHTTPClient(hc),
			antpool.WithLogger(logging.Component(logger, "antpool")),
		),
	), nil
}

// Decorate wraps every adapter with the configured rate limit and, when store
// is not nil, a result cache in front of it.
func Decorate(reg provider.Registry, cfg config.Config, store cache.Store, logger *slog.Logger) provider.Registry {
	return reg.Wrap(func(a provider.Adapter) provider.Adapter {
		s := cfg.Providers.For(a.Kind())
		a = ratelimit.New(a, s.MaxRequestsPerMinute, s.Burst, time.Duration(s.MinRequestIntervalSec)*time.Second)
		if store != nil && cfg.Cache.TTLSeconds > 0 {
			a = &cache.Adapter{
				A:      a,
				Store:  store,
				TTL:    time.Duration(cfg.Cache.TTLSeconds) * time.Second,
				Logger: logging.Component(logger, "cache"),
			}
		}
		return a
	})
}

// OpenStore returns the configured cache store and a function releasing it.
// The "none" backend yields a nil store.
func OpenStore(ctx context.Context, c config.Cache) (cache.Store, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(c.Backend) {
	case "", "none":
		return nil, noop, nil
	case "memory":
		return cache.NewMemory(c.MaxItems), noop, nil
	case "redis":
		r, err := cache.NewRedis(ctx, c.RedisURL, c.RedisPassword)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown cache backend %q", c.Backend)
}
