package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"FitStreak/internal/model/dto"
	"FitStreak/internal/service"
	"FitStreak/pkg/response"
)

// CreateGoal 创建目标
// POST /v1/goals
func CreateGoal(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CreateGoalRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	goal, err := service.Goal().Create(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Created(ctx, c, goal)
}

// ListGoals GET /v1/goals?status=
func ListGoals(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.GoalListQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	goals, err := service.Goal().List(ctx, userID, q)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.SuccessWithMeta(ctx, c, goals, map[string]interface{}{"count": len(goals)})
}

// GetGoal GET /v1/goals/:id
func GetGoal(ctx context.Context, c *app.RequestContext) {
	withGoal(ctx, c, func(userID, goalID int64) (interface{}, error) {
		return service.Goal().Get(ctx, userID, goalID)
	})
}

// ArchiveGoal POST /v1/goals/:id/archive
func ArchiveGoal(ctx context.Context, c *app.RequestContext) {
	withGoal(ctx, c, func(userID, goalID int64) (interface{}, error) {
		return service.Goal().Archive(ctx, userID, goalID)
	})
}

// CancelGoal POST /v1/goals/:id/cancel
func CancelGoal(ctx context.Context, c *app.RequestContext) {
	withGoal(ctx, c, func(userID, goalID int64) (interface{}, error) {
		return service.Goal().Cancel(ctx, userID, goalID)
	})
}

// GetGoalStreak GET /v1/goals/:id/streak
func GetGoalStreak(ctx context.Context, c *app.RequestContext) {
	withGoal(ctx, c, func(userID, goalID int64) (interface{}, error) {
		return service.Goal().Streak(ctx, userID, goalID)
	})
}

// ReconcileGoalStreak 按打卡历史重算连续计数
// POST /v1/goals/:id/streak/reconcile
func ReconcileGoalStreak(ctx context.Context, c *app.RequestContext) {
	withGoal(ctx, c, func(userID, goalID int64) (interface{}, error) {
		return service.Goal().Reconcile(ctx, userID, goalID)
	})
}

// DeleteGoal 删除目标及其打卡记录
// DELETE /v1/goals/:id
func DeleteGoal(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	goalID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	if err := service.Goal().Delete(ctx, userID, goalID); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.NoContent(ctx, c)
}

func withGoal(ctx context.Context, c *app.RequestContext, fn func(userID, goalID int64) (interface{}, error)) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	goalID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	data, err := fn(userID, goalID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, data)
}
