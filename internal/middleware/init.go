package middleware

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/pkg/logger"
)

// Init 初始化所有中间件，需在 token.Init 之后调用
func Init() error {
	if err := initAuthMiddleware(); err != nil {
		logger.Logger.Error("Failed to initialize auth middleware", zap.Error(err))
		return err
	}

	if config.Cfg.OtelEnabled {
		if err := InitMetrics(otel.Meter("fitstreak-http")); err != nil {
			logger.Logger.Error("Failed to initialize HTTP metrics", zap.Error(err))
			return err
		}
	}

	logger.Logger.Info("All middlewares initialized successfully")
	return nil
}
