// Package cache redis 相关的辅助组件
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// Throttle 基于 SET NX EX 的固定窗口节流：窗口内同一个 key 只放行一次。
// redis 不可用时放行。
type Throttle struct {
	client *redis.Client
	prefix string
	window time.Duration

	allowed atomic.Int64
	blocked atomic.Int64
	errors  atomic.Int64
}

func NewThrottle(client *redis.Client, prefix string, window time.Duration) *Throttle {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Throttle{client: client, prefix: prefix, window: window}
}

// Allow 是否放行本次请求
func (t *Throttle) Allow(ctx context.Context, key string) bool {
	ok, err := t.client.SetNX(ctx, t.prefix+key, time.Now().UnixMilli(), t.window).Result()
	if err != nil {
		t.errors.Add(1)
		logger.Warn("throttle unavailable, allowing request", zap.String("key", key), zap.Error(err))
		t.allowed.Add(1)
		return true
	}
	if !ok {
		t.blocked.Add(1)
		return false
	}
	t.allowed.Add(1)
	return true
}

// Stats 放行、拦截、redis 出错的累计次数
type Stats struct {
	Allowed int64
	Blocked int64
	Errors  int64
}

func (t *Throttle) Stats() Stats {
	return Stats{Allowed: t.allowed.Load(), Blocked: t.blocked.Load(), Errors: t.errors.Load()}
}

// NewClient 连接 redis 并 ping 一次
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
