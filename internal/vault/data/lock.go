package data

import (
	"context"
	"time"

	pkgredis "github.com/ramakeerthi/file-vault-backend/internal/pkg/redis"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
)

// ingestLockPrefix 按内容 hash 的入库锁 key 前缀
const ingestLockPrefix = "vault:ingest:"

// RedisIngestLock 实现 biz.IngestLock，基于 Redis SetNX + token 释放
type RedisIngestLock struct {
	client     *pkgredis.Client
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

// NewRedisIngestLock 创建入库锁
func NewRedisIngestLock(client *pkgredis.Client, ttl time.Duration, retries int, retryDelay time.Duration) biz.IngestLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retries <= 0 {
		retries = 50
	}
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	return &RedisIngestLock{
		client:     client,
		ttl:        ttl,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// Acquire 获取该 hash 的互斥锁，返回释放函数
func (l *RedisIngestLock) Acquire(ctx context.Context, hash string) (func(), error) {
	key := ingestLockPrefix + hash

	token, err := l.client.TryLock(ctx, key, l.ttl, l.retries, l.retryDelay)
	if err != nil {
		return nil, err
	}

	release := func() {
		// 释放不依赖调用方 context，避免请求取消后锁悬挂到 TTL
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = l.client.Unlock(releaseCtx, key, token)
	}
	return release, nil
}
