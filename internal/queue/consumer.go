package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"FitStreak/internal/cache"
	"FitStreak/internal/model"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/logger"
	"FitStreak/storage/mq"
)

const (
	processingTTL = 10 * time.Minute
	processedTTL  = 48 * time.Hour
)

// Deliverer 由 service.NotificationService 实现
type Deliverer interface {
	Deliver(ctx context.Context, msg model.NotificationMessage) error
}

type Consumer struct {
	deliverer Deliverer
}

func NewConsumer(deliverer Deliverer) *Consumer {
	return &Consumer{deliverer: deliverer}
}

// Handle 处理一条通知消息
// Redis 标记挡住并发重复投递，通知任务表的唯一 message_id 保证最终只发送一次
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var msg model.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 无法解析的消息重试也不会成功
		logger.Logger.Error("Failed to unmarshal notification message", zap.Error(err))
		return fmt.Errorf("unmarshal notification message: %w", errors.SkipMessageError)
	}
	if msg.MessageID == "" {
		logger.Logger.Warn("Notification message without id, dropping", zap.Int64("user_id", msg.UserID))
		return fmt.Errorf("notification message without id: %w", errors.SkipMessageError)
	}

	first, err := cache.TryMarkMessageProcessing(ctx, msg.MessageID, processingTTL)
	if err != nil {
		logger.Logger.Warn("Failed to check message processed status",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	} else if !first {
		logger.Logger.Info("Message already processed or being processed, skipping",
			zap.String("message_id", msg.MessageID),
		)
		return fmt.Errorf("message %s: %w", msg.MessageID, errors.SkipMessageError)
	}

	if err := c.deliverer.Deliver(ctx, msg); err != nil {
		if errors.IsSkipMessageError(err) {
			c.markProcessed(ctx, msg.MessageID)
			return err
		}
		if uerr := cache.UnmarkMessageProcessing(ctx, msg.MessageID); uerr != nil {
			logger.Logger.Warn("Failed to unmark message processing",
				zap.String("message_id", msg.MessageID),
				zap.Error(uerr),
			)
		}
		return err
	}

	c.markProcessed(ctx, msg.MessageID)
	return nil
}

func (c *Consumer) markProcessed(ctx context.Context, messageID string) {
	if err := cache.MarkMessageProcessed(ctx, messageID, processedTTL); err != nil {
		logger.Logger.Warn("Failed to mark message as processed",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}

// Run 阻塞消费通知队列直到 ctx 取消
func (c *Consumer) Run(ctx context.Context, prefetch int) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.NotificationQueue,
		ConsumerTag:   "notification_consumer",
		PrefetchCount: prefetch,
		Handler:       c.Handle,
	})
}
