package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// releaseLockScript deletes the lock only while it still holds our token.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// ErrLockNotHeld is returned when releasing a lock that expired or was taken over.
var ErrLockNotHeld = errors.New("lock not held")

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func rateKey(key string) string {
	return fmt.Sprintf("fx:%s", key)
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// GetRate reads a cached exchange rate; a miss reports false
func (c *Client) GetRate(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	val, err := c.rdb.Get(ctx, rateKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	rate, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cached rate %q: %w", key, err)
	}
	return rate, true, nil
}

// SetRate caches an exchange rate with TTL
func (c *Client) SetRate(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	return c.rdb.Set(ctx, rateKey(key), rate.String(), ttl).Err()
}

// AcquireLock takes a named lock for ttl. It returns the token needed to
// release it, or ok=false when another holder has it.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.New().String()
	ok, err = c.rdb.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a lock previously acquired with token
func (c *Client) ReleaseLock(ctx context.Context, name, token string) error {
	deleted, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(name)}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}
