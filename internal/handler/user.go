package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"FitStreak/internal/model/dto"
	"FitStreak/internal/service"
	"FitStreak/pkg/response"
)

// GetUserProfile 获取用户资料
// GET /v1/users/me
func GetUserProfile(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	profile, err := service.User().Profile(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, profile)
}

// UpdateUserSettings 更新资料与提醒设置，只修改请求中出现的字段
// PATCH /v1/users/me
func UpdateUserSettings(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.UpdateUserSettingsRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	profile, err := service.User().UpdateSettings(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, profile)
}
