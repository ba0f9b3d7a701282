package storage

import (
	"go.uber.org/zap"

	"FitStreak/pkg/logger"
	"FitStreak/storage/database"
	"FitStreak/storage/mq"
	"FitStreak/storage/redis"
)

// Init 统一初始化存储层，数据库与 MQ 必需，Redis 不可用时缓存降级
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		logger.Logger.Warn("Redis unavailable, caches and locks are disabled", zap.Error(err))
	}

	if err := mq.Init(); err != nil {
		return err
	}

	return nil
}
