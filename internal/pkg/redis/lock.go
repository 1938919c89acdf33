package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLockNotAcquired 未能获取锁
var ErrLockNotAcquired = errors.New("redis: lock not acquired")

// unlockScript 只有当锁的值等于 token 时才删除
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// Lock 获取分布式锁，返回持有者 token
func (c *Client) Lock(ctx context.Context, key string, expiration time.Duration) (string, error) {
	token := uuid.New().String()

	ok, err := c.rdb.SetNX(ctx, key, token, expiration).Result()
	if err != nil {
		return "", fmt.Errorf("redis: lock %s: %w", key, err)
	}
	if !ok {
		return "", ErrLockNotAcquired
	}
	return token, nil
}

// Unlock 释放分布式锁（Lua 脚本保证原子性）
func (c *Client) Unlock(ctx context.Context, key, token string) error {
	result, err := c.rdb.Eval(ctx, unlockScript, []string{key}, token).Result()
	if err != nil {
		return fmt.Errorf("redis: unlock %s: %w", key, err)
	}
	if n, ok := result.(int64); !ok || n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// TryLock 尝试获取分布式锁（带重试）
func (c *Client) TryLock(ctx context.Context, key string, expiration time.Duration, maxRetries int, retryDelay time.Duration) (string, error) {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		token, err := c.Lock(ctx, key, expiration)
		if err == nil {
			return token, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return "", fmt.Errorf("redis: lock %s after %d retries: %w", key, maxRetries, lastErr)
}
