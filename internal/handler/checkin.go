package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
	"FitStreak/internal/service"
	"FitStreak/pkg/response"
)

// GetTodayCheckIns 当天所有需要打卡的目标
// GET /v1/check-ins/today
func GetTodayCheckIns(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	result, err := service.CheckIn().Today(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, result)
}

// ActOnCheckIn 对打卡记录执行 complete / skip / rest-day
// POST /v1/check-ins/:id/:action
func ActOnCheckIn(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	checkInID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	var req dto.CheckInActionRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	result, err := service.CheckIn().Act(ctx, userID, checkInID, model.CheckInAction(c.Param("action")), req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, result)
}

// ActOnTodayCheckIn 对目标今天的打卡执行动作，记录缺失时按需创建
// POST /v1/goals/:id/check-ins/today/:action
func ActOnTodayCheckIn(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	goalID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	var req dto.CheckInActionRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	result, err := service.CheckIn().ActToday(ctx, userID, goalID, model.CheckInAction(c.Param("action")), req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, result)
}

// GetCheckInHistory 分页查询历史打卡记录
// GET /v1/goals/:id/check-ins
func GetCheckInHistory(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	goalID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	var q dto.CheckInHistoryQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.CheckIn().History(ctx, userID, goalID, q)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, result)
}

// PresignCheckInMedia 申请打卡照片上传地址
// POST /v1/check-ins/:id/media
func PresignCheckInMedia(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	checkInID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	var req dto.MediaUploadRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	result, err := service.CheckIn().PresignMedia(ctx, userID, checkInID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, result)
}
