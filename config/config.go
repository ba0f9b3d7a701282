package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"fitstreak"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"fitstreak"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	AutoMigrate        bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"fs"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置
	JWTSecret        string `env:"JWT_SECRET"` // 必填，用于签名 JWT
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`
	JWTRefreshDays   int    `env:"JWT_REFRESH_DAYS" envDefault:"7"`

	// 加密配置
	EncryptionKey string `env:"ENCRYPTION_KEY"` // 用于加密手机号，32字节 AES-256

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪与指标
	OtelEnabled      bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OtelSampleRatio  float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`
	SentryDSN        string  `env:"SENTRY_DSN"`
	SentrySampleRate float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0"`

	// 后台任务配置
	PrecreateInterval time.Duration `env:"JOB_PRECREATE_INTERVAL" envDefault:"1h"`
	SweepInterval     time.Duration `env:"JOB_SWEEP_INTERVAL" envDefault:"1h"`
	LifecycleInterval time.Duration `env:"JOB_LIFECYCLE_INTERVAL" envDefault:"1h"`
	ReminderInterval  time.Duration `env:"JOB_REMINDER_INTERVAL" envDefault:"15m"`
	JobItemTimeout    time.Duration `env:"JOB_ITEM_TIMEOUT" envDefault:"5s"`
	JobRunTimeout     time.Duration `env:"JOB_RUN_TIMEOUT" envDefault:"20m"`
	JobWorkers        int           `env:"JOB_WORKERS" envDefault:"8"`
	JobBatchSize      int           `env:"JOB_BATCH_SIZE" envDefault:"500"`

	// 短信服务配置
	// AccessKey 通过阿里云 SDK 的环境变量获取：ALIBABA_CLOUD_ACCESS_KEY_ID / ALIBABA_CLOUD_ACCESS_KEY_SECRET
	SMSProvider             string `env:"SMS_PROVIDER" envDefault:"mock"` // aliyun, mock, none
	SMSSignName             string `env:"SMS_SIGN_NAME"`
	SMSReminderTemplateCode string `env:"SMS_REMINDER_TEMPLATE_CODE"`

	// 邮件服务配置
	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"mock"` // resend, mock
	ResendAPIKey  string `env:"RESEND_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" envDefault:"FitStreak <noreply@fitstreak.app>"`

	// 对象存储配置
	S3Bucket        string        `env:"S3_BUCKET" envDefault:"fitstreak-media"`
	S3Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint      string        `env:"S3_ENDPOINT"`
	S3AccessKey     string        `env:"S3_ACCESS_KEY"`
	S3SecretKey     string        `env:"S3_SECRET_KEY"`
	S3UsePathStyle  bool          `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	S3PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"15m"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitActions int  `env:"RATE_LIMIT_ACTIONS_PER_MINUTE" envDefault:"30"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate 启动期校验，各进程在 main 中显式调用
func Validate() error {
	return Cfg.validate()
}

func (c *Config) validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		errs = append(errs, errors.New("ENCRYPTION_KEY must be exactly 32 bytes for AES-256"))
	}
	if c.IsProduction() && c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required in production"))
	}

	for name, d := range map[string]time.Duration{
		"JOB_PRECREATE_INTERVAL": c.PrecreateInterval,
		"JOB_SWEEP_INTERVAL":     c.SweepInterval,
		"JOB_LIFECYCLE_INTERVAL": c.LifecycleInterval,
		"JOB_REMINDER_INTERVAL":  c.ReminderInterval,
		"JOB_ITEM_TIMEOUT":       c.JobItemTimeout,
		"JOB_RUN_TIMEOUT":        c.JobRunTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.JobWorkers <= 0 {
		errs = append(errs, errors.New("JOB_WORKERS must be positive"))
	}
	if c.JobBatchSize <= 0 {
		errs = append(errs, errors.New("JOB_BATCH_SIZE must be positive"))
	}

	if c.SMSProvider == "aliyun" && (c.SMSSignName == "" || c.SMSReminderTemplateCode == "") {
		log.Printf("WARN: SMS_SIGN_NAME or SMS_REMINDER_TEMPLATE_CODE is not set, SMS reminders may not work")
	}
	if c.EmailProvider == "resend" && c.ResendAPIKey == "" {
		errs = append(errs, errors.New("RESEND_API_KEY is required when EMAIL_PROVIDER=resend"))
	}

	return errors.Join(errs...)
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
