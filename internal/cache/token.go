package cache

import (
	"context"
	"strconv"
	"time"

	ri "github.com/redis/go-redis/v9"

	"FitStreak/storage/redis"
)

const tokenPrefix = "token"

// RefreshTokens 每个用户只保留最新签发的 refresh token
// Key: fs:token:refresh:{user_id}
type RefreshTokens struct{}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{}
}

func refreshKey(userID int64) string {
	return redis.Key(tokenPrefix, "refresh", strconv.FormatInt(userID, 10))
}

func (RefreshTokens) Save(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	c := client()
	if c == nil {
		return nil
	}
	return c.Set(ctx, refreshKey(userID), token, ttl).Err()
}

// Matches 无记录时视为匹配，Redis 丢失数据不应让所有会话失效
func (RefreshTokens) Matches(ctx context.Context, userID int64, token string) (bool, error) {
	c := client()
	if c == nil {
		return true, nil
	}

	stored, err := c.Get(ctx, refreshKey(userID)).Result()
	if err == ri.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return stored == token, nil
}

// Revoke 登出时删除
func (RefreshTokens) Revoke(ctx context.Context, userID int64) error {
	c := client()
	if c == nil {
		return nil
	}
	return c.Del(ctx, refreshKey(userID)).Err()
}
