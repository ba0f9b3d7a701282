package cache

import (
	"context"
	"fmt"
	"time"

	"FitStreak/storage/redis"
)

const (
	messageProcessedPrefix = "msg:processed"
	processedTTL           = 24 * time.Hour
)

// TryMarkMessageProcessing 原子标记消息处理中
// true 表示首次处理，false 表示重复消息或正在处理；Redis 不可用时放行，由通知任务表兜底
func TryMarkMessageProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	c := client()
	if c == nil {
		return true, nil
	}
	if ttl <= 0 {
		ttl = processedTTL
	}

	ok, err := c.SetNX(ctx, redis.Key(messageProcessedPrefix, messageID), "processing", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return ok, nil
}

// UnmarkMessageProcessing 处理失败时调用，允许重试
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	c := client()
	if c == nil {
		return nil
	}
	return c.Del(ctx, redis.Key(messageProcessedPrefix, messageID)).Err()
}

// MarkMessageProcessed 处理成功后写入完成标记
func MarkMessageProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	c := client()
	if c == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = processedTTL
	}
	return c.Set(ctx, redis.Key(messageProcessedPrefix, messageID), "completed", ttl).Err()
}
