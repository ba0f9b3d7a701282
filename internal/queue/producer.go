package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"FitStreak/internal/model"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/snowflake"
	"FitStreak/storage/mq"
)

// PublishFunc 与 mq.PublishMessage 同签名，测试中替换
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

// Dispatcher 把业务事件投递到通知交换机，实现 service.Notifier
// 投递失败只记录日志，不影响已提交的打卡结果
type Dispatcher struct {
	publish PublishFunc
	clock   clock.Clock
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{publish: mq.PublishMessage, clock: clock.SystemClock{}}
}

// NewDispatcherWith 自定义发布函数与时钟
func NewDispatcherWith(publish PublishFunc, c clock.Clock) *Dispatcher {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Dispatcher{publish: publish, clock: c}
}

func RoutingKey(event model.NotificationEvent) string {
	return "notification." + string(event)
}

func (d *Dispatcher) Notify(ctx context.Context, userID int64, event model.NotificationEvent, payload map[string]interface{}) {
	messageID, err := snowflake.NextKey("ntf_")
	if err != nil {
		logger.Logger.Error("Failed to generate message ID",
			zap.Int64("user_id", userID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return
	}

	msg := model.NotificationMessage{
		MessageID:  messageID,
		Event:      event,
		Payload:    payload,
		UserID:     userID,
		OccurredAt: d.clock.Now().UTC().Format(time.RFC3339),
	}

	if err := d.publish(ctx, mq.NotificationExchange, RoutingKey(event), messageID, msg); err != nil {
		logger.Logger.Error("Failed to publish notification",
			zap.String("message_id", messageID),
			zap.Int64("user_id", userID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return
	}

	logger.Logger.Debug("Published notification",
		zap.String("message_id", messageID),
		zap.Int64("user_id", userID),
		zap.String("event", string(event)),
	)
}
