package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	ports "bloodcell-inference-service/internal/core/ports/output"
)

const keyPrefix = "bloodcell:"

// Options for the redis connection. Entry TTL belongs to the cache, see NewResultCache.
type Options struct {
	Addr     string
	Password string
	DB       int
}

type resultCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewClient connects to redis and checks the connection
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewResultCache stores JSON encoded results with a fixed TTL
func NewResultCache(client *goredis.Client, ttl time.Duration) ports.ResultCache {
	return &resultCache{client: client, ttl: ttl}
}

func (c *resultCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached result: %w", err)
	}
	return true, nil
}

func (c *resultCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
