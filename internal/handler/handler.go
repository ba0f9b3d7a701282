package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"FitStreak/internal/middleware"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/response"
)

// currentUser 取不到身份时已写入 401
func currentUser(ctx context.Context, c *app.RequestContext) (int64, bool) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return 0, false
	}
	return userID, true
}

// pathID 解析路径中的数字 id
func pathID(ctx context.Context, c *app.RequestContext, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(ctx, c, errors.InvalidRequest)
		return 0, false
	}
	return id, true
}

// bindJSON 允许空请求体
func bindJSON(ctx context.Context, c *app.RequestContext, req interface{}) bool {
	if len(c.Request.Body()) == 0 {
		return true
	}
	if err := c.BindJSON(req); err != nil {
		response.BindError(ctx, c, err)
		return false
	}
	return true
}
