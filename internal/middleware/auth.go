package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"FitStreak/pkg/errors"
	"FitStreak/pkg/response"
	"FitStreak/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

func initAuthMiddleware() error {
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return fmt.Errorf("token generator not initialized, call token.Init() first")
	}

	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "FitStreak API",
		Key:         sharedGenerator.Key,
		Timeout:     sharedGenerator.Timeout,
		MaxRefresh:  sharedGenerator.MaxRefresh,
		IdentityKey: sharedGenerator.IdentityKey,
		TimeFunc:    sharedGenerator.TimeFunc,

		// 身份为用户 public_id
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			uid, err := token.ParseUserID(claims[IdentityKey])
			if err != nil {
				return nil
			}
			return uid
		},

		// refresh token 带 type 声明，不能当作 access token 使用
		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			if _, ok := data.(int64); !ok {
				return false
			}
			claims := jwt.ExtractClaims(ctx, c)
			tokenType, _ := claims["type"].(string)
			return tokenType == ""
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			def := errors.Unauthorized
			if code == http.StatusUnauthorized && message == jwt.ErrExpiredToken.Error() {
				def = errors.TokenExpired
			}
			response.Error(ctx, c, def)
		},

		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
	})
	if err != nil {
		return fmt.Errorf("failed to create auth middleware: %w", err)
	}

	authMiddleware = mw
	return nil
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// GetUserID 从请求上下文中获取用户 public_id
func GetUserID(ctx context.Context, c *app.RequestContext) (int64, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return 0, false
	}

	id, ok := v.(int64)
	return id, ok && id > 0
}
