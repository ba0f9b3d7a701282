package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"FitStreak/internal/model"
	"FitStreak/pkg/logger"
)

// Models 所有需要迁移的模型
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Goal{},
		&model.CheckIn{},
		&model.NotificationTask{},
	}
}

// Migrate 运行数据库迁移，创建所有表与唯一索引
func Migrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
