package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"FitStreak/pkg/logger"
)

const (
	timezonePrefix = "user:tz"
	timezoneTTL    = 24 * time.Hour
)

// Timezones 用户时区缓存，任务扫描时批量读取；读写失败只记录日志，调用方回源数据库
type Timezones struct {
	cache *ProtectedCache
}

func NewTimezones() *Timezones {
	return &Timezones{cache: NewProtectedCache(timezonePrefix, timezoneTTL)}
}

func (t *Timezones) GetMany(ctx context.Context, userIDs []int64) map[int64]string {
	out := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return out
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = strconv.FormatInt(id, 10)
	}

	err := t.cache.BatchGet(ctx, keys, func(key string, raw []byte) error {
		var tz string
		if err := json.Unmarshal(raw, &tz); err != nil {
			return err
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return err
		}
		out[id] = tz
		return nil
	})
	if err != nil && err != ErrNoClient {
		logger.Logger.Warn("Failed to read timezone cache", zap.Int("count", len(userIDs)), zap.Error(err))
	}
	return out
}

func (t *Timezones) SetMany(ctx context.Context, timezones map[int64]string) {
	values := make(map[string]interface{}, len(timezones))
	for id, tz := range timezones {
		values[strconv.FormatInt(id, 10)] = tz
	}
	if err := t.cache.SetMany(ctx, values); err != nil && err != ErrNoClient {
		logger.Logger.Warn("Failed to fill timezone cache", zap.Int("count", len(values)), zap.Error(err))
	}
}

func (t *Timezones) Invalidate(ctx context.Context, userID int64) {
	if err := t.cache.Delete(ctx, strconv.FormatInt(userID, 10)); err != nil && err != ErrNoClient {
		logger.Logger.Warn("Failed to invalidate timezone cache", zap.Int64("user_id", userID), zap.Error(err))
	}
}
