package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client with the list and sorted-set calls the notification queue needs
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient creates a new Redis client
func NewClient(url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// Push appends a value to the tail of a list
func (c *Client) Push(ctx context.Context, key string, value []byte) error {
	return c.rdb.RPush(ctx, key, value).Err()
}

// BlockingPop pops the head of a list, waiting up to timeout. Returns nil when nothing arrived.
func (c *Client) BlockingPop(ctx context.Context, key string, timeout time.Duration) ([]byte, error) {
	res, err := c.rdb.BLPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPOP answers [key, value]
	return []byte(res[1]), nil
}

// Schedule adds a member to a sorted set scored by the unix time it becomes due
func (c *Client) Schedule(ctx context.Context, key string, value []byte, at time.Time) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: float64(at.Unix()), Member: value}).Err()
}

// PromoteDue moves every member of zset due at or before now onto the tail of list
func (c *Client) PromoteDue(ctx context.Context, zset, list string, now time.Time) (int, error) {
	due, err := c.rdb.ZRangeByScore(ctx, zset, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, member := range due {
		// ZREM first so a concurrent promoter cannot enqueue the same member twice
		n, err := c.rdb.ZRem(ctx, zset, member).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			continue
		}
		if err := c.rdb.RPush(ctx, list, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}

	if moved > 0 {
		c.logger.Debug("promoted scheduled items", slog.String("key", zset), slog.Int("count", moved))
	}
	return moved, nil
}

// Len returns the length of a list
func (c *Client) Len(ctx context.Context, key string) (int64, error) {
	return c.rdb.LLen(ctx, key).Result()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
