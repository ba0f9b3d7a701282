package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/token"
)

// AuthService 只负责 token 刷新，登录由上游身份服务完成
type AuthService struct {
	rows   repository.RowStore
	tokens RefreshTokenStore
}

func NewAuthService(deps Deps) *AuthService {
	deps = deps.withDefaults()
	return &AuthService{rows: deps.Rows, tokens: deps.Tokens}
}

// RefreshToken 校验 refresh token 并轮换出新的 token 对
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*token.Pair, error) {
	publicID, err := token.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, errors.TokenInvalid
	}
	if user.Status != model.UserStatusActive {
		return nil, errors.Unauthorized
	}

	// 已被轮换掉的 refresh token 不能再次使用；Redis 不可用时只依赖签名校验
	if s.tokens != nil {
		ok, err := s.tokens.Matches(ctx, publicID, refreshToken)
		if err != nil {
			logger.Logger.Warn("Failed to check refresh token rotation",
				zap.Int64("user_id", user.ID),
				zap.Error(err),
			)
		} else if !ok {
			return nil, errors.TokenInvalid
		}
	}

	pair, err := token.GenerateTokenPair(publicID)
	if err != nil {
		return nil, err
	}

	if s.tokens != nil {
		ttl := time.Duration(config.Cfg.JWTRefreshDays) * 24 * time.Hour
		if err := s.tokens.Save(ctx, publicID, pair.RefreshToken, ttl); err != nil {
			logger.Logger.Warn("Failed to store rotated refresh token",
				zap.Int64("user_id", user.ID),
				zap.Error(err),
			)
		}
	}

	return &pair, nil
}
