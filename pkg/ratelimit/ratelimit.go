package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter 固定窗口限流
type RateLimiter interface {
	// Allow 记录一次请求并返回是否允许；retryAfter 为被拒绝时距离窗口结束的时间
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// RedisRateLimiter 基于 INCR + EXPIRE 的固定窗口计数，多进程共享
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisRateLimiter 创建限流器
func NewRedisRateLimiter(client *redis.Client, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "gmdl"
	}
	return &RedisRateLimiter{client: client, prefix: prefix}
}

// Allow 计数 +1；首次计数时设置窗口 TTL
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:rate_limit:%s", r.prefix, key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("rate limit pipeline: %w", err)
	}

	// 新窗口（或丢失 TTL 的旧键）需要设置过期时间
	if incr.Val() == 1 || ttl.Val() < 0 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return true, 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	if incr.Val() > int64(limit) {
		retry := ttl.Val()
		if retry <= 0 {
			retry = window
		}
		return false, retry, nil
	}
	return true, 0, nil
}

// MemoryRateLimiter 进程内固定窗口限流，用于测试与未配置 Redis 的单实例部署
type MemoryRateLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter 创建进程内限流器
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{now: time.Now, windows: make(map[string]*memoryWindow)}
}

// Allow 计数 +1
func (m *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	if w.count > limit {
		return false, w.resetAt.Sub(now), nil
	}
	return true, 0, nil
}
