package database

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey      = "otel:span"
	startTimeKey = "otel:start_time"
)

// PluginConfig 插件配置
type PluginConfig struct {
	ServiceName   string
	EnableMetrics bool
	MaxSQLLength  int
}

// DefaultPluginConfig 默认插件配置
func DefaultPluginConfig(serviceName string) PluginConfig {
	if serviceName == "" {
		serviceName = "fitstreak"
	}
	return PluginConfig{
		ServiceName:   serviceName,
		EnableMetrics: true,
		MaxSQLLength:  500,
	}
}

// OTELPlugin GORM OpenTelemetry 插件，每条语句一个 client span
type OTELPlugin struct {
	tracer   trace.Tracer
	config   PluginConfig
	queries  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTELPlugin 创建插件实例
func NewOTELPlugin(config PluginConfig) *OTELPlugin {
	meter := otel.Meter(config.ServiceName + ".gorm")

	// 全局 meter 创建失败时返回 noop 实现，可以忽略错误
	queries, _ := meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	duration, _ := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)

	return &OTELPlugin{
		tracer:   otel.Tracer(config.ServiceName + ".gorm"),
		config:   config,
		queries:  queries,
		duration: duration,
	}
}

// Name 实现 gorm.Plugin 接口
func (p *OTELPlugin) Name() string {
	return "otel_plugin"
}

// Initialize 注册回调
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	type hook struct {
		op       string
		register func(name string, fn func(*gorm.DB)) error
		after    func(name string, fn func(*gorm.DB)) error
	}

	hooks := []hook{
		{"select", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"insert", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		if err := h.register("otel:before_"+h.op, p.before(h.op)); err != nil {
			return err
		}
		if err := h.after("otel:after_"+h.op, p.after(h.op)); err != nil {
			return err
		}
	}
	return nil
}

func (p *OTELPlugin) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, "db."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				semconv.DBOperation(op),
				attribute.String("service.name", p.config.ServiceName),
			),
		)
		db.InstanceSet(spanKey, span)
		db.InstanceSet(startTimeKey, time.Now())
		db.Statement.Context = ctx
	}
}

func (p *OTELPlugin) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(spanKey)
		if !ok {
			return
		}
		span, ok := v.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if table := db.Statement.Table; table != "" {
			span.SetAttributes(semconv.DBSQLTable(table))
		}
		sql := db.Statement.SQL.String()
		if len(sql) > p.config.MaxSQLLength {
			sql = sql[:p.config.MaxSQLLength] + "..."
		}
		span.SetAttributes(
			semconv.DBStatement(sql),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)

		status := "success"
		if err := db.Error; err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			status = "error"
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}

		if p.config.EnableMetrics {
			p.record(db.Statement.Context, db, op, status)
		}
	}
}

func (p *OTELPlugin) record(ctx context.Context, db *gorm.DB, op, status string) {
	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.status", status),
	)
	p.queries.Add(ctx, 1, attrs)

	if v, ok := db.InstanceGet(startTimeKey); ok {
		if start, ok := v.(time.Time); ok {
			p.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	}
}
