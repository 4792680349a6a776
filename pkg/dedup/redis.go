package dedup

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "automation:dedup:"

// RedisDeduper implements Deduper on a shared Redis instance so all engine
// replicas see the same window.
type RedisDeduper struct {
	client redis.UniversalClient
}

func NewRedisDeduper(client redis.UniversalClient) *RedisDeduper {
	return &RedisDeduper{client: client}
}

// NewRedisDeduperFromURL connects using a redis:// URL.
func NewRedisDeduperFromURL(ctx context.Context, url string) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisDeduper(client), nil
}

func (d *RedisDeduper) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// SETNX is the atomic record-and-test: the first caller sets the key and
	// owns the event.
	created, err := d.client.SetNX(ctx, keyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record dedup key: %w", err)
	}

	return !created, nil
}

func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
