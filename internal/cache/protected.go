package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand"
	"time"

	ri "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"FitStreak/pkg/logger"
	"FitStreak/storage/redis"
)

const (
	// 空值缓存标识
	emptyValueFlag = "__EMPTY__"
	emptyValueTTL  = 5 * time.Minute
	// TTL 随机抖动上限，避免同批写入的键同时过期
	ttlJitterMax = 5 * time.Minute
)

// ErrNoClient Redis 未初始化，调用方按未命中处理
var ErrNoClient = stderrors.New("redis client not initialized")

// client 测试中可替换
var client = redis.Client

// ProtectedCache 带空值保护与熔断的 JSON 缓存
type ProtectedCache struct {
	keyPrefix string
	ttl       time.Duration
	emptyTTL  time.Duration
	breaker   *CircuitBreaker
}

func NewProtectedCache(keyPrefix string, ttl time.Duration) *ProtectedCache {
	return &ProtectedCache{
		keyPrefix: keyPrefix,
		ttl:       ttl,
		emptyTTL:  emptyValueTTL,
		breaker:   RedisBreaker,
	}
}

func (pc *ProtectedCache) key(key string) string {
	return redis.Key(pc.keyPrefix, key)
}

func (pc *ProtectedCache) jitteredTTL() time.Duration {
	return pc.ttl + time.Duration(rand.Int63n(int64(ttlJitterMax)))
}

// Set value 为 nil 时写入空值标识
func (pc *ProtectedCache) Set(ctx context.Context, key string, value interface{}) error {
	c := client()
	if c == nil {
		return ErrNoClient
	}

	data, ttl := emptyValueFlag, pc.emptyTTL
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal cache value: %w", err)
		}
		data, ttl = string(b), pc.jitteredTTL()
	}

	return pc.breaker.Call(func() error {
		return c.Set(ctx, pc.key(key), data, ttl).Err()
	})
}

// SetMany 批量写入，单个 pipeline
func (pc *ProtectedCache) SetMany(ctx context.Context, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}
	c := client()
	if c == nil {
		return ErrNoClient
	}

	pipe := c.Pipeline()
	for key, value := range values {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal cache value: %w", err)
		}
		pipe.Set(ctx, pc.key(key), string(b), pc.jitteredTTL())
	}

	return pc.breaker.Call(func() error {
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Get 返回是否命中；空值命中时 dest 不变
func (pc *ProtectedCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c := client()
	if c == nil {
		return false, ErrNoClient
	}

	var data string
	err := pc.breaker.Call(func() error {
		var err error
		data, err = c.Get(ctx, pc.key(key)).Result()
		if err == ri.Nil {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to get cache: %w", err)
	}
	if data == "" {
		return false, nil
	}
	if data == emptyValueFlag {
		return true, nil
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// BatchGet 单个 MGET 读取，未命中与空值都不出现在结果里
func (pc *ProtectedCache) BatchGet(ctx context.Context, keys []string, decode func(key string, raw []byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	c := client()
	if c == nil {
		return ErrNoClient
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = pc.key(key)
	}

	var values []interface{}
	err := pc.breaker.Call(func() error {
		var err error
		values, err = c.MGet(ctx, cacheKeys...).Result()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to batch get cache: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok || raw == emptyValueFlag {
			continue
		}
		if err := decode(keys[i], []byte(raw)); err != nil {
			logger.Logger.Warn("Failed to decode cache item in batch",
				zap.String("key", keys[i]),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (pc *ProtectedCache) Delete(ctx context.Context, key string) error {
	c := client()
	if c == nil {
		return ErrNoClient
	}
	return pc.breaker.Call(func() error {
		return c.Del(ctx, pc.key(key)).Err()
	})
}
