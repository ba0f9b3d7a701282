package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/internal/cache"
	"FitStreak/internal/queue"
	"FitStreak/internal/repository"
	"FitStreak/internal/schedule"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/metrics"
	"FitStreak/pkg/otel"
	"FitStreak/pkg/snowflake"
	"FitStreak/storage"
	"FitStreak/storage/database"
)

func main() {
	logger.Init()
	defer logger.Sync()

	if err := config.Validate(); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if config.Cfg.OtelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.ConfigFor("scheduler"))
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
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	// 通知 id 依赖 snowflake，各副本需配置不同的 machine id
	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	s := schedule.New(schedule.Deps{
		Rows:      repository.NewGormStore(database.DB()),
		Notifier:  queue.NewDispatcher(),
		Timezones: cache.NewTimezones(),
		Locker:    cache.NewLocker(),
		Options:   schedule.OptionsFromConfig(),
	})

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
	)

	jobs := []struct {
		name     string
		interval time.Duration
		fn       func(ctx context.Context) error
	}{
		{schedule.JobLifecycle, config.Cfg.LifecycleInterval, func(ctx context.Context) error {
			_, err := s.Lifecycle(ctx)
			return err
		}},
		{schedule.JobPrecreate, config.Cfg.PrecreateInterval, func(ctx context.Context) error {
			_, err := s.Precreate(ctx)
			return err
		}},
		{schedule.JobSweep, config.Cfg.SweepInterval, func(ctx context.Context) error {
			_, err := s.Sweep(ctx)
			return err
		}},
		{schedule.JobReminder, config.Cfg.ReminderInterval, func(ctx context.Context) error {
			_, err := s.Remind(ctx)
			return err
		}},
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runLoop(ctx, job.name, job.interval, job.fn)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	logger.Logger.Info("Scheduler service shutting down gracefully")
}

// runLoop 启动时立即执行一次，之后按 interval 周期执行
// 单次执行受 JOB_RUN_TIMEOUT 约束，上一次未结束时跳过本轮
func runLoop(ctx context.Context, job string, interval time.Duration, fn func(ctx context.Context) error) {
	// 开发环境缩短间隔方便本地调试
	if config.Cfg.IsDevelopment() && interval > time.Minute {
		interval = time.Minute
		logger.Logger.Info("Job running in development mode with 1m interval", zap.String("job", job))
	}

	once := func() {
		runCtx, cancel := context.WithTimeout(ctx, config.Cfg.JobRunTimeout)
		defer cancel()

		err := fn(runCtx)
		switch {
		case err == nil:
		case stderrors.Is(err, schedule.ErrJobRunning), stderrors.Is(err, schedule.ErrJobLocked):
			// run 内已记录
		case stderrors.Is(err, context.Canceled) && ctx.Err() != nil:
			logger.Logger.Info("Job interrupted by shutdown", zap.String("job", job))
		default:
			logger.Logger.Error("Job run failed", zap.String("job", job), zap.Error(err))
		}
	}

	logger.Logger.Info("Job scheduled",
		zap.String("job", job),
		zap.Duration("interval", interval),
	)
	once()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			once()
		}
	}
}
