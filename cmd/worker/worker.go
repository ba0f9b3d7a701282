package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/internal/queue"
	"FitStreak/internal/repository"
	"FitStreak/internal/service"
	"FitStreak/pkg/email"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/metrics"
	"FitStreak/pkg/otel"
	"FitStreak/pkg/sms"
	"FitStreak/pkg/snowflake"
	"FitStreak/storage"
	"FitStreak/storage/database"
)

const prefetch = 16

func main() {
	logger.Init()
	defer logger.Sync()

	if err := config.Validate(); err != nil {
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

	if config.Cfg.OtelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.ConfigFor("worker"))
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}
	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize metrics", zap.Error(err))
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	deps := service.Deps{Rows: repository.NewGormStore(database.DB())}

	// 渠道初始化失败只关闭该渠道，通知仍会写入任务表
	smsSender, err := sms.New()
	switch {
	case err != nil:
		logger.Logger.Warn("SMS channel disabled", zap.Error(err))
	case smsSender != nil:
		deps.SMS = smsSender
	}

	emailSender, err := email.New()
	switch {
	case err != nil:
		logger.Logger.Warn("Email channel disabled", zap.Error(err))
	case emailSender != nil:
		deps.Email = emailSender
	}

	service.Init(deps)

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
		zap.Bool("sms", deps.SMS != nil),
		zap.Bool("email", deps.Email != nil),
	)

	err = queue.NewConsumer(service.Notification()).Run(ctx, prefetch)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		logger.Logger.Error("Notification consumer stopped", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
