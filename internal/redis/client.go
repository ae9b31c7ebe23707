// Package redis wraps the go-redis client with the small surface the
// gateway needs: health checks and a fixed-window rate counter shared
// across instances.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// ParseDB converts a REDIS_DB environment value into a database number.
func ParseDB(db string) int {
	n, err := strconv.Atoi(db)
	if err != nil || n < 0 || n > 15 {
		return 0
	}
	return n
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Underlying exposes the raw go-redis client for cache backends.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

// IncrementWindow bumps a fixed-window counter and returns the count after
// the increment. The key expires when its window closes, so counters reset
// naturally. This is the shared rate-limit primitive.
func (c *Client) IncrementWindow(ctx context.Context, key string, window time.Duration) (int, error) {
	pipe := c.rdb.TxPipeline()

	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate window: %w", err)
	}

	return int(incrCmd.Val()), nil
}
