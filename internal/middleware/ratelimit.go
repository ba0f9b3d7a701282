package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/response"
	"FitStreak/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
	// ByUserID 已认证时按用户限流，否则回退到 IP
	ByUserID bool
	// BlockDuration 超限后的封禁时长，0 表示不封禁
	BlockDuration time.Duration
}

// RateLimiter 基于 zset 的滑动窗口限流器
type RateLimiter struct {
	config RateLimitConfig
	client func() *redislib.Client
	now    func() time.Time
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{config: config, client: redis.Client, now: time.Now}
}

func (rl *RateLimiter) identifier(ctx context.Context, c *app.RequestContext) string {
	if rl.config.ByUserID {
		if userID, ok := GetUserID(ctx, c); ok {
			return "user:" + strconv.FormatInt(userID, 10)
		}
	}
	return "ip:" + c.ClientIP()
}

// Allow 返回是否放行以及窗口内的请求数
func (rl *RateLimiter) Allow(ctx context.Context, client *redislib.Client, id string) (bool, int, error) {
	key := redis.Key(rl.config.KeyPrefix, id)
	now := rl.now()
	windowStart := now.Add(-rl.config.Window)

	pipe := client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redislib.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(card.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) blockKey(id string) string {
	return redis.Key(rl.config.KeyPrefix, "block", id)
}

// RateLimitMiddleware Redis 不可用时放行，限流不应成为单点
func RateLimitMiddleware(cfg RateLimitConfig) app.HandlerFunc {
	return NewRateLimiter(cfg).Handler()
}

func (rl *RateLimiter) Handler() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		client := rl.client()
		if client == nil {
			c.Next(ctx)
			return
		}
		id := rl.identifier(ctx, c)

		if rl.config.BlockDuration > 0 {
			blocked, err := client.Exists(ctx, rl.blockKey(id)).Result()
			if err != nil {
				logger.Logger.Warn("Failed to check block status", zap.Error(err))
			} else if blocked > 0 {
				c.Abort()
				response.Error(ctx, c, errors.TooManyRequests)
				return
			}
		}

		allowed, count, err := rl.Allow(ctx, client, id)
		if err != nil {
			logger.Logger.Warn("Failed to check rate limit", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := rl.config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(rl.config.Window).Unix(), 10))

		if !allowed {
			if rl.config.BlockDuration > 0 {
				if err := client.Set(ctx, rl.blockKey(id), "1", rl.config.BlockDuration).Err(); err != nil {
					logger.Logger.Warn("Failed to block client", zap.String("id", id), zap.Error(err))
				}
			}
			logger.Logger.Info("Rate limit exceeded",
				zap.String("id", id),
				zap.String("path", string(c.Path())),
				zap.Int("count", count),
			)
			c.Abort()
			response.Error(ctx, c, errors.TooManyRequests)
			return
		}

		c.Next(ctx)
	}
}

// ActionRateLimitMiddleware 打卡动作按用户每分钟限流
func ActionRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Window:      time.Minute,
		MaxRequests: config.Cfg.RateLimitActions,
		KeyPrefix:   "rate:checkin",
		ByUserID:    true,
	})
}

// GeneralRateLimitMiddleware 已认证路由的通用限流
func GeneralRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Window:      time.Minute,
		MaxRequests: 300,
		KeyPrefix:   "rate:api",
		ByUserID:    true,
	})
}

// AuthRateLimitMiddleware 登录与刷新按 IP 限流，超限封禁 15 分钟
func AuthRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Window:        time.Minute,
		MaxRequests:   10,
		KeyPrefix:     "rate:auth",
		BlockDuration: 15 * time.Minute,
	})
}
