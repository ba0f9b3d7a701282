package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"go.uber.org/zap"

	appconfig "FitStreak/config"
	"FitStreak/internal/cache"
	"FitStreak/internal/middleware"
	"FitStreak/internal/queue"
	"FitStreak/internal/repository"
	"FitStreak/internal/router"
	"FitStreak/internal/service"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/media"
	"FitStreak/pkg/metrics"
	"FitStreak/pkg/otel"
	"FitStreak/pkg/snowflake"
	"FitStreak/pkg/token"
	"FitStreak/storage"
	"FitStreak/storage/database"
)

func main() {
	logger.Init()
	defer logger.Sync()

	if err := appconfig.Validate(); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if appconfig.Cfg.OtelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.ConfigFor("api"))
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
				}
			}()
		}
	}
	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize metrics", zap.Error(err))
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(appconfig.Cfg.SnowflakeMachineID, appconfig.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	} // token 在中间件前初始化，middleware 依赖 token

	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	deps := service.Deps{
		Rows:      repository.NewGormStore(database.DB()),
		Notifier:  queue.NewDispatcher(),
		Timezones: cache.NewTimezones(),
		Tokens:    cache.NewRefreshTokens(),
	}
	if appconfig.Cfg.S3Bucket != "" {
		presigner, err := media.NewPresigner(ctx, media.ConfigFromEnv())
		if err != nil {
			logger.Logger.Warn("Media uploads disabled", zap.Error(err))
		} else {
			deps.Media = presigner
		}
	}
	service.Init(deps)

	logger.Logger.Info("Server starting",
		zap.String("service", appconfig.Cfg.ServiceName),
		zap.String("port", appconfig.Cfg.ServerPort),
		zap.String("environment", appconfig.Cfg.Environment),
	)

	addr := net.JoinHostPort(appconfig.Cfg.ServerHost, appconfig.Cfg.ServerPort)
	opts := []config.Option{server.WithHostPorts(addr)}

	var tracing app.HandlerFunc
	if appconfig.Cfg.OtelEnabled {
		tracer, mw := middleware.NewServerTracerConfig()
		opts = append(opts, tracer)
		tracing = mw
	}

	h := server.Default(opts...)
	if tracing != nil {
		h.Use(tracing)
	}
	router.Register(h)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
