// Package cache provides a best-effort redis cache for provider search
// results. Misses and redis failures are indistinguishable to callers.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

type Search struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSearch(addr string, ttl time.Duration) *Search {
	return &Search{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func (c *Search) Get(ctx context.Context, key string, dest any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("search cache get", "err", err)
		}
		return false
	}
	if err := json.Unmarshal(b, dest); err != nil {
		slog.Debug("search cache decode", "err", err)
		return false
	}
	return true
}

func (c *Search) Put(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		slog.Debug("search cache put", "err", err)
	}
}
