package handler

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"FitStreak/config"
)

// Healthz 存活探针
// GET /healthz
func Healthz(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": config.Cfg.ServiceName,
		"version": config.Cfg.Version,
	})
}
