// Package repotest 为仓储、服务与任务测试提供内存 SQLite
package repotest

import (
	"context"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/snowflake"
	"FitStreak/storage/database"
)

// NewStore 每个测试独立的内存库，已完成迁移
func NewStore(t *testing.T) *repository.GormStore {
	t.Helper()

	if err := snowflake.Init(1, 1); err != nil {
		t.Fatalf("init snowflake: %v", err)
	}

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&cache=shared"

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return repository.NewGormStore(gdb)
}

// CreateUser 写入一个指定时区的用户
func CreateUser(t *testing.T, rows repository.RowStore, tz string) *model.User {
	t.Helper()

	id, err := snowflake.NextID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	user := &model.User{
		PublicID:     id,
		Nickname:     "tester",
		Status:       model.UserStatusActive,
		Timezone:     tz,
		ReminderHour: model.DefaultReminderHour,
	}
	if err := repository.NewUserRepository(rows).Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateGoal 写入一个 active 目标，起始日期为 start
func CreateGoal(t *testing.T, rows repository.RowStore, user *model.User, schedule model.Schedule, start clock.Date) *model.Goal {
	t.Helper()

	id, err := snowflake.NextID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	goal := &model.Goal{
		PublicID:   id,
		UserID:     user.ID,
		Title:      "Morning run",
		Frequency:  schedule.Frequency,
		DaysOfWeek: schedule.Days,
		Status:     model.GoalStatusActive,
		StartDate:  start,
	}
	if err := repository.NewGoalRepository(rows).Create(context.Background(), goal); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return goal
}
