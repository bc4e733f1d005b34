package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"poolwatch/internal/provider"
)

const redisPrefix = "poolwatch:payload:"

// Redis is a Store backed by a Redis server. Values are JSON payloads with a
// key expiry equal to the TTL.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to redisURL and pings the server.
func NewRedis(ctx context.Context, redisURL, password string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Close shuts down the Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (provider.SharePayload, bool, error) {
	b, err := r.rdb.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return provider.SharePayload{}, false, nil
	}
	if err != nil {
		return provider.SharePayload{}, false, err
	}
	var p provider.SharePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return provider.SharePayload{}, false, fmt.Errorf("decoding cached payload: %w", err)
	}
	return p, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, p provider.SharePayload, ttl time.Duration) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, redisPrefix+key, b, ttl).Err()
}
