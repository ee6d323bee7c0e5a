package hits

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "nebula:hits:"

// RedisDeduper shares claimed keys between server instances through Redis.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper on an existing client.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// ConnectRedisDeduper parses redisURL (redis://host:port/db), pings the server and returns a deduper.
func ConnectRedisDeduper(ctx context.Context, redisURL string, ttl time.Duration) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	customLog.Printf("Hits: Redis dedup store connected: %s", opts.Addr)
	return NewRedisDeduper(client, ttl), nil
}

// Claim implements Deduper with SETNX, so concurrent instances agree on the first claimant.
func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, redisKeyPrefix+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim failed: %w", err)
	}
	return ok, nil
}

// Release implements Deduper.
func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
