package metrics

import "context"

// 包级便捷函数，指标未初始化时直接返回

func RecordJobRun(ctx context.Context, job string, outcomes map[string]int, seconds float64, failed bool) {
	if m := GetMetrics(); m != nil {
		m.RecordJobRun(ctx, job, outcomes, seconds, failed)
	}
}

func RecordJobSkipped(ctx context.Context, job, reason string) {
	if m := GetMetrics(); m != nil {
		m.RecordJobSkipped(ctx, job, reason)
	}
}

func RecordCheckInAction(ctx context.Context, status string) {
	if m := GetMetrics(); m != nil {
		m.RecordCheckInAction(ctx, status)
	}
}

func RecordNotification(ctx context.Context, event, channel, status string, seconds float64) {
	if m := GetMetrics(); m != nil {
		m.RecordNotification(ctx, event, channel, status, seconds)
	}
}
