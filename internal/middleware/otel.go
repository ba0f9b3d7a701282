package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// serverMetrics HTTP 指标，标签只使用路由模板
type serverMetrics struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	requestSize  metric.Int64Histogram
	responseSize metric.Int64Histogram
	active       metric.Int64UpDownCounter
}

var httpMetrics *serverMetrics

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 触发指标/trace 序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// InitMetrics 初始化指标
func InitMetrics(meter metric.Meter) error {
	m := &serverMetrics{}
	var err error

	if m.requests, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	if m.duration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return err
	}

	if m.requestSize, err = meter.Int64Histogram(
		"http.server.request.size",
		metric.WithDescription("HTTP request size"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}

	if m.responseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP response size"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}

	if m.active, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	httpMetrics = m
	return nil
}

// OpenTelemetryMiddleware 补充 span 属性并记录 HTTP 指标
// 挂载了 hertz tracing 时复用其创建的 span，否则自行创建
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer("fitstreak-http")

	return func(ctx context.Context, c *app.RequestContext) {
		m := httpMetrics
		if m == nil {
			c.Next(ctx)
			return
		}
		start := time.Now()

		m.active.Add(ctx, 1)
		defer m.active.Add(ctx, -1)

		method := toValidUTF8(string(c.Method()))
		// 路由模板作为 span 名与标签，避免 id 进入基数
		route := toValidUTF8(c.FullPath())
		if route == "" {
			route = "unmatched"
		}

		span := trace.SpanFromContext(ctx)
		if !span.SpanContext().IsValid() {
			ctx, span = tracer.Start(ctx, method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethod(method),
					semconv.HTTPRoute(route),
					attribute.String("http.user_agent", toValidUTF8(string(c.UserAgent()))),
				),
			)
			defer span.End()
		}

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("http.request_id", toValidUTF8(requestID)))
		}

		c.Next(ctx)

		// 认证中间件在之后执行，用户 ID 只能在请求结束后读取
		if userID, ok := GetUserID(ctx, c); ok {
			span.SetAttributes(attribute.Int64("enduser.id", userID))
		}

		status := c.Response.StatusCode()
		elapsed := time.Since(start).Seconds()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		switch {
		case status >= 500:
			span.SetStatus(codes.Error, "HTTP server error")
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr)
			}
		case status >= 400:
			// 4xx 为业务拒绝，不标记 span 失败
			span.SetAttributes(attribute.Bool("http.client_error", true))
		}

		attrs := metric.WithAttributes(
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(status),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, elapsed, attrs)
		if n := int64(c.Request.Header.ContentLength()); n > 0 {
			m.requestSize.Record(ctx, n, attrs)
		}
		if n := int64(len(c.Response.Body())); n > 0 {
			m.responseSize.Record(ctx, n, attrs)
		}
	}
}

// NewServerTracerConfig 返回 hertz server 的 tracer 选项与配套中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
