package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown holds time-window locks as redis TTL keys.
type Cooldown struct {
	client *redis.Client
}

func NewCooldown(client *redis.Client) *Cooldown {
	return &Cooldown{client: client}
}

// Acquire takes the window for key. When the window is already held it
// reports false along with the remaining wait.
func (c *Cooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := c.client.TTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = ttl
	}
	return false, remaining, nil
}

// Release frees the window early, used when the guarded action failed.
func (c *Cooldown) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
