package router

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"

	"FitStreak/config"
	"FitStreak/internal/handler"
	"FitStreak/internal/middleware"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.RequestIDMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	h.GET("/healthz", handler.Healthz)

	v1 := h.Group("/v1")

	auth := v1.Group("/auth", rateLimit(middleware.AuthRateLimitMiddleware())...)
	{
		auth.POST("/token/refresh", handler.RefreshToken)
	}

	authed := append([]app.HandlerFunc{middleware.AuthMiddleware()}, rateLimit(middleware.GeneralRateLimitMiddleware())...)
	actionLimit := rateLimit(middleware.ActionRateLimitMiddleware())

	users := v1.Group("/users", authed...)
	{
		users.GET("/me", handler.GetUserProfile)
		users.PATCH("/me", handler.UpdateUserSettings)
	}

	goals := v1.Group("/goals", authed...)
	{
		goals.POST("", handler.CreateGoal)
		goals.GET("", handler.ListGoals)
		goals.GET("/:id", handler.GetGoal)
		goals.DELETE("/:id", handler.DeleteGoal)
		goals.POST("/:id/archive", handler.ArchiveGoal)
		goals.POST("/:id/cancel", handler.CancelGoal)
		goals.GET("/:id/streak", handler.GetGoalStreak)
		goals.POST("/:id/streak/reconcile", handler.ReconcileGoalStreak)
		goals.GET("/:id/check-ins", handler.GetCheckInHistory)
		goals.POST("/:id/check-ins/today/:action", append(actionLimit, handler.ActOnTodayCheckIn)...)
	}

	checkIns := v1.Group("/check-ins", authed...)
	{
		checkIns.GET("/today", handler.GetTodayCheckIns)
		checkIns.POST("/:id/media", handler.PresignCheckInMedia)
		checkIns.POST("/:id/:action", append(actionLimit, handler.ActOnCheckIn)...)
	}
}

// rateLimit RATE_LIMIT_ENABLED=false 时不挂载
func rateLimit(mw app.HandlerFunc) []app.HandlerFunc {
	if !config.Cfg.RateLimitEnabled {
		return nil
	}
	return []app.HandlerFunc{mw}
}
