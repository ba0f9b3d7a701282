package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 后台任务
	JobRunsTotal    metric.Int64Counter
	JobItemsTotal   metric.Int64Counter
	JobRunDuration  metric.Float64Histogram
	JobSkippedTotal metric.Int64Counter

	// 打卡
	CheckInActionsTotal metric.Int64Counter

	// 通知
	NotificationsTotal   metric.Int64Counter
	NotificationDuration metric.Float64Histogram
}

var (
	// 全局指标实例，未初始化时记录函数为空操作
	metrics *OTelMetrics
	meter   = otel.Meter("fitstreak")
)

// InitMetrics 初始化 OpenTelemetry 指标，需在 otel.Init 之后调用
func InitMetrics() error {
	var err error
	meter = otel.Meter("fitstreak")
	m := &OTelMetrics{}

	m.JobRunsTotal, err = meter.Int64Counter(
		"job_runs_total",
		metric.WithDescription("Total number of background job runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	m.JobItemsTotal, err = meter.Int64Counter(
		"job_items_total",
		metric.WithDescription("Items processed by background jobs, by outcome"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return err
	}

	m.JobRunDuration, err = meter.Float64Histogram(
		"job_run_duration_seconds",
		metric.WithDescription("Background job run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.JobSkippedTotal, err = meter.Int64Counter(
		"job_skipped_total",
		metric.WithDescription("Job ticks skipped because another run holds the job"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	m.CheckInActionsTotal, err = meter.Int64Counter(
		"checkin_actions_total",
		metric.WithDescription("Check-in actions by resulting status"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return err
	}

	m.NotificationsTotal, err = meter.Int64Counter(
		"notifications_total",
		metric.WithDescription("Notification deliveries by channel and status"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return err
	}

	m.NotificationDuration, err = meter.Float64Histogram(
		"notification_send_duration_seconds",
		metric.WithDescription("Time spent sending a notification in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordJobRun 记录一次任务执行及各结果计数
func (m *OTelMetrics) RecordJobRun(ctx context.Context, job string, outcomes map[string]int, seconds float64, failed bool) {
	status := "success"
	if failed {
		status = "failed"
	}
	m.JobRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("status", status),
	))
	m.JobRunDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("job", job)))

	for outcome, n := range outcomes {
		if n == 0 {
			continue
		}
		m.JobItemsTotal.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("job", job),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordJobSkipped reason: running | locked
func (m *OTelMetrics) RecordJobSkipped(ctx context.Context, job, reason string) {
	m.JobSkippedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("reason", reason),
	))
}

func (m *OTelMetrics) RecordCheckInAction(ctx context.Context, status string) {
	m.CheckInActionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *OTelMetrics) RecordNotification(ctx context.Context, event, channel, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("channel", channel),
		attribute.String("status", status),
	)
	m.NotificationsTotal.Add(ctx, 1, attrs)
	if channel != "" {
		m.NotificationDuration.Record(ctx, seconds, metric.WithAttributes(
			attribute.String("channel", channel),
		))
	}
}
