package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"listing_price/internal/adapters/observability"
)

// Cache stores JSON values under prefix+key.
type Cache struct {
	c      *redis.Client
	prefix string
}

func New(addr, pass string, db int, prefix string) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), prefix: prefix}
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.ObserveCache("redis", "hit")
	return true, json.Unmarshal(v, dst)
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, r.prefix+key, b, time.Duration(ttlSec)*time.Second).Err()
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, r.prefix+key).Err()
}

func (r *Cache) GetMany(ctx context.Context, keys []string, dst []any) ([]bool, error) {
	if len(keys) != len(dst) {
		return nil, fmt.Errorf("GetMany: %d keys, %d destinations", len(keys), len(dst))
	}
	hits := make([]bool, len(keys))
	if len(keys) == 0 {
		return hits, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	vals, err := r.c.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			observability.ObserveCache("redis", "miss")
			continue
		}
		if err := json.Unmarshal([]byte(s), dst[i]); err != nil {
			return nil, fmt.Errorf("key %s: %w", keys[i], err)
		}
		observability.ObserveCache("redis", "hit")
		hits[i] = true
	}
	return hits, nil
}

func (r *Cache) SetMany(ctx context.Context, entries map[string]any, ttlSec int) error {
	if len(entries) == 0 {
		return nil
	}
	ttl := time.Duration(ttlSec) * time.Second
	_, err := r.c.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range entries {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			p.Set(ctx, r.prefix+k, b, ttl)
			observability.ObserveCache("redis", "set")
		}
		return nil
	})
	return err
}
