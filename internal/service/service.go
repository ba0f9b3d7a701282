package service

import (
	"context"
	"sync"
	"time"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
)

// Notifier 通知投递，失败只记录日志，不影响调用方
type Notifier interface {
	Notify(ctx context.Context, userID int64, event model.NotificationEvent, payload map[string]interface{})
}

// NopNotifier 不发送任何通知
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, int64, model.NotificationEvent, map[string]interface{}) {}

// TimezoneCache 用户时区缓存，未命中的 id 不出现在返回值里
type TimezoneCache interface {
	GetMany(ctx context.Context, userIDs []int64) map[int64]string
	SetMany(ctx context.Context, timezones map[int64]string)
	Invalidate(ctx context.Context, userID int64)
}

// MediaPresigner 生成对象存储的上传地址
type MediaPresigner interface {
	PresignPut(ctx context.Context, key, contentType string) (url string, expiresAt time.Time, err error)
}

// RefreshTokenStore refresh token 轮换记录
type RefreshTokenStore interface {
	Save(ctx context.Context, userID int64, token string, ttl time.Duration) error
	Matches(ctx context.Context, userID int64, token string) (bool, error)
}

// Deps 服务依赖，nil 字段使用默认实现
type Deps struct {
	Rows      repository.RowStore
	Clock     clock.Clock
	Notifier  Notifier
	Timezones TimezoneCache
	Media     MediaPresigner
	Tokens    RefreshTokenStore
	SMS       SMSSender
	Email     EmailSender
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.SystemClock{}
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	return d
}

var (
	mu                  sync.RWMutex
	checkInService      *CheckInService
	goalService         *GoalService
	userService         *UserService
	authService         *AuthService
	notificationService *NotificationService
)

// Init 组装全局服务实例，进程启动时调用一次
func Init(deps Deps) {
	deps = deps.withDefaults()

	mu.Lock()
	defer mu.Unlock()
	checkInService = NewCheckInService(deps)
	goalService = NewGoalService(deps)
	userService = NewUserService(deps)
	authService = NewAuthService(deps)
	notificationService = NewNotificationService(deps)
}

func CheckIn() *CheckInService {
	mu.RLock()
	defer mu.RUnlock()
	if checkInService == nil {
		panic("service not initialized")
	}
	return checkInService
}

func Goal() *GoalService {
	mu.RLock()
	defer mu.RUnlock()
	if goalService == nil {
		panic("service not initialized")
	}
	return goalService
}

func User() *UserService {
	mu.RLock()
	defer mu.RUnlock()
	if userService == nil {
		panic("service not initialized")
	}
	return userService
}

func Auth() *AuthService {
	mu.RLock()
	defer mu.RUnlock()
	if authService == nil {
		panic("service not initialized")
	}
	return authService
}

func Notification() *NotificationService {
	mu.RLock()
	defer mu.RUnlock()
	if notificationService == nil {
		panic("service not initialized")
	}
	return notificationService
}
