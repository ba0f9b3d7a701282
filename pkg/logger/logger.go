package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/getsentry/sentry-go"
	hertzzap "github.com/hertz-contrib/logger/zap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"FitStreak/config"
)

var (
	// Logger 在 Init 之前为 Nop，测试中无需初始化
	Logger   = zap.NewNop()
	logClose io.Closer

	sentryEnabled bool
)

func Init() {
	coreLevel := zap.NewAtomicLevel()
	coreLevel.SetLevel(parseZapLevel(config.Cfg.LoggerLevel))

	zapOpts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
	if initSentry() {
		zapOpts = append(zapOpts, zap.Hooks(sentryHook))
	}

	opts := []hertzzap.Option{
		hertzzap.WithCoreEnc(buildEncoder()),
		hertzzap.WithCoreWs(buildWriteSyncer()),
		hertzzap.WithCoreLevel(coreLevel),
		hertzzap.WithZapOptions(zapOpts...),
	}

	hzLogger := hertzzap.NewLogger(opts...)
	hlog.SetLogger(hzLogger)
	hlog.SetLevel(toHlogLevel(coreLevel.Level()))

	Logger = hzLogger.Logger()
	Logger.Info("Logger initialized successfully",
		zap.String("level", strings.ToUpper(config.Cfg.LoggerLevel)),
		zap.String("format", config.Cfg.LoggerFormat),
		zap.String("environment", config.Cfg.Environment),
		zap.Bool("sentry", sentryEnabled),
	)
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}

	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}

	if logClose != nil {
		_ = logClose.Close()
	}
}

// SentryEnabled 供 recover 中间件判断是否上报 panic
func SentryEnabled() bool {
	return sentryEnabled
}

func initSentry() bool {
	if config.Cfg.SentryDSN == "" {
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.Cfg.SentryDSN,
		Environment:      config.Cfg.Environment,
		Release:          config.Cfg.ServiceName + "@" + config.Cfg.Version,
		TracesSampleRate: config.Cfg.SentrySampleRate,
	})
	if err != nil {
		// logger 尚未就绪
		os.Stderr.WriteString("WARN: sentry init failed: " + err.Error() + "\n")
		return false
	}

	sentryEnabled = true
	return true
}

// sentryHook 把 Error 及以上级别的日志转发到 Sentry
func sentryHook(entry zapcore.Entry) error {
	if entry.Level < zapcore.ErrorLevel {
		return nil
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(toSentryLevel(entry.Level))
		scope.SetTag("logger", entry.LoggerName)
		scope.SetExtra("caller", entry.Caller.TrimmedPath())
		sentry.CaptureMessage(entry.Message)
	})
	return nil
}

func toSentryLevel(level zapcore.Level) sentry.Level {
	switch level {
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}

func buildEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	isText := config.Cfg.IsDevelopment() || strings.EqualFold(config.Cfg.LoggerFormat, "text")
	if isText {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func buildWriteSyncer() zapcore.WriteSyncer {
	if strings.EqualFold(config.Cfg.LoggerOutputPath, "stdout") {
		return zapcore.AddSync(os.Stdout)
	}

	file, err := os.OpenFile(config.Cfg.LoggerOutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic("failed to open log file: " + err.Error())
	}
	logClose = file

	return zapcore.AddSync(file)
}

func parseZapLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func toHlogLevel(level zapcore.Level) hlog.Level {
	switch level {
	case zapcore.DebugLevel:
		return hlog.LevelDebug
	case zapcore.InfoLevel:
		return hlog.LevelInfo
	case zapcore.WarnLevel:
		return hlog.LevelWarn
	case zapcore.ErrorLevel:
		return hlog.LevelError
	default:
		return hlog.LevelInfo
	}
}
