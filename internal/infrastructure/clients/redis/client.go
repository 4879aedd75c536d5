package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

// Client represents a Redis client
type Client struct {
	client *redis.Client
}

// pingTimeout bounds the startup check; callers fall back to in-process
// messaging when Redis does not answer in time
const pingTimeout = 3 * time.Second

// NewClient creates a new Redis client and verifies the connection
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: pingTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr(), err)
	}

	return &Client{client: client}, nil
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping verifies the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
