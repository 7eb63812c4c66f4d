package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"

	"github.com/redis/go-redis/v9"
)

var _ output.FrameCache = (*FrameCache)(nil)

const keyPrefix = "dvd:frame:"

// FrameCache stores frame descriptions in Redis so stores in other
// processes can reuse them.
type FrameCache struct {
	client *redis.Client
	ttl    time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Timeout  time.Duration
}

// Connect dials Redis and checks the connection with PING.
func Connect(ctx context.Context, cfg Config) (*FrameCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rediscache.Connect: ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.TTL), nil
}

func New(client *redis.Client, ttl time.Duration) *FrameCache {
	return &FrameCache{client: client, ttl: ttl}
}

func (c *FrameCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("rediscache.FrameCache.Get: %w", err)
	}
	return val, true, nil
}

func (c *FrameCache) Set(ctx context.Context, key, description string) error {
	if err := c.client.Set(ctx, keyPrefix+key, description, c.ttl).Err(); err != nil {
		return fmt.Errorf("rediscache.FrameCache.Set: %w", err)
	}
	return nil
}

func (c *FrameCache) Close() error {
	return c.client.Close()
}
