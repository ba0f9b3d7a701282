package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"FitStreak/pkg/logger"
	"FitStreak/storage/redis"
)

const lockPrefix = "lock"

// 只删除自己持有的锁，避免过期后误删其他副本的锁
var unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker 基于 SET NX PX 的分布式锁
type Locker struct{}

func NewLocker() *Locker {
	return &Locker{}
}

// Acquire ok=false 表示锁被占用；Redis 不可用时返回 err
func (Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	c := client()
	if c == nil {
		return nil, false, ErrNoClient
	}

	fullKey := redis.Key(lockPrefix, key)
	token := uuid.NewString()

	ok, err := c.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func(ctx context.Context) {
		once.Do(func() {
			if err := c.Eval(ctx, unlockScript, []string{fullKey}, token).Err(); err != nil {
				logger.Logger.Warn("Failed to release lock", zap.String("key", fullKey), zap.Error(err))
			}
		})
	}
	return release, true, nil
}
