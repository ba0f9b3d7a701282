package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"FitStreak/internal/model/dto"
	"FitStreak/internal/service"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/response"
)

// RefreshToken 刷新访问令牌
// POST /v1/auth/token/refresh
func RefreshToken(ctx context.Context, c *app.RequestContext) {
	var req dto.RefreshTokenRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	if req.RefreshToken == "" {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	pair, err := service.Auth().RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, pair)
}
