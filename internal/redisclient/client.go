package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type Client struct {
	redisdb *redis.Client
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// Ping checks redis connectivity, used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// Incr bumps a fixed-window counter, setting the window expiry on first hit.
// Returns the counter value and the remaining window.
func (c *Client) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	n, err := c.redisdb.Incr(ctx, key).Result()

	if err != nil {
		return 0, 0, err
	}

	if n == 1 {
		err = c.redisdb.Expire(ctx, key, window).Err()

		if err != nil {
			return n, window, err
		}

		return n, window, nil
	}

	ttl, err := c.redisdb.TTL(ctx, key).Result()

	if err != nil || ttl < 0 {
		ttl = window
	}

	return n, ttl, nil
}

// Raw exposes the underlying client.
func (c *Client) Raw() *redis.Client {
	return c.redisdb
}
