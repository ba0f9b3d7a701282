package mq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer 为 RabbitMQ 的发布与消费加追踪，trace context 通过消息头传递
type Tracer struct {
	serviceName string
	tracer      trace.Tracer
	propagator  propagation.TextMapPropagator
	messages    metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewTracer 使用全局 provider，未初始化 otel 时为 noop
func NewTracer(serviceName string) *Tracer {
	meter := otel.Meter(serviceName + ".rabbitmq")
	messages, _ := meter.Int64Counter(
		"mq.messages.total",
		metric.WithDescription("Total number of RabbitMQ messages"),
		metric.WithUnit("{message}"),
	)
	duration, _ := meter.Float64Histogram(
		"mq.message.duration",
		metric.WithDescription("RabbitMQ publish and handle duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0),
	)

	return &Tracer{
		serviceName: serviceName,
		tracer:      otel.Tracer(serviceName + ".rabbitmq"),
		propagator:  otel.GetTextMapPropagator(),
		messages:    messages,
		duration:    duration,
	}
}

// Publisher 抽象 amqp.Channel 的发布能力
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publish 发布消息，trace context 注入 msg.Headers
func (t *Tracer) Publish(ctx context.Context, ch Publisher, exchange, routingKey string, msg amqp.Publishing) error {
	ctx, span := t.tracer.Start(ctx, "rabbitmq.publish "+exchange,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			semconv.MessagingMessageID(msg.MessageId),
		),
	)
	defer span.End()

	headers := make(amqp.Table, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	t.propagator.Inject(ctx, &MessageHeaderCarrier{Headers: headers})
	msg.Headers = headers

	start := time.Now()
	err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
	t.observe(ctx, span, "publish", routingKey, start, err)
	return err
}

// Process 提取消息头中的 trace context 并在 span 内执行 handler
func (t *Tracer) Process(ctx context.Context, queue string, d amqp.Delivery, handle func(ctx context.Context) error) error {
	ctx = t.propagator.Extract(ctx, &MessageHeaderCarrier{Headers: d.Headers})
	ctx, span := t.tracer.Start(ctx, "rabbitmq.process "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			attribute.String("messaging.source.name", queue),
			semconv.MessagingRabbitmqDestinationRoutingKey(d.RoutingKey),
			semconv.MessagingMessageID(d.MessageId),
			attribute.Bool("messaging.rabbitmq.redelivered", d.Redelivered),
		),
	)
	defer span.End()

	start := time.Now()
	err := handle(ctx)
	t.observe(ctx, span, "process", d.RoutingKey, start, err)
	return err
}

func (t *Tracer) observe(ctx context.Context, span trace.Span, op, routingKey string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	attrs := metric.WithAttributes(
		attribute.String("messaging.operation", op),
		attribute.String("messaging.rabbitmq.routing_key", routingKey),
		attribute.String("messaging.status", status),
	)
	t.messages.Add(ctx, 1, attrs)
	t.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// MessageHeaderCarrier 实现 propagation.TextMapCarrier 接口
type MessageHeaderCarrier struct {
	Headers amqp.Table
}

var _ propagation.TextMapCarrier = (*MessageHeaderCarrier)(nil)

func (m *MessageHeaderCarrier) Get(key string) string {
	if val, ok := m.Headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (m *MessageHeaderCarrier) Set(key, value string) {
	if m.Headers == nil {
		m.Headers = make(amqp.Table)
	}
	m.Headers[key] = value
}

func (m *MessageHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	return keys
}
