package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"FitStreak/config"
	"FitStreak/pkg/logger"
	pkgmq "FitStreak/pkg/mq"
)

// 通知拓扑：topic 交换机按事件路由，失败消息进入死信队列
const (
	NotificationExchange   = "notification.topic"
	NotificationQueue      = "notification.dispatch"
	NotificationBinding    = "notification.#"
	DeadLetterExchange     = "notification.dlx"
	NotificationDeadLetter = "notification.dead"
)

var (
	conn     *amqp.Connection
	connMu   sync.RWMutex
	initOnce sync.Once
	initErr  error
	tracer   *pkgmq.Tracer
)

func Init() error {
	initOnce.Do(func() {
		c, err := amqp.Dial(config.Cfg.GetRabbitMQURL())
		if err != nil {
			initErr = fmt.Errorf("failed to connect rabbitmq: %w", err)
			return
		}

		ch, err := c.Channel()
		if err != nil {
			_ = c.Close()
			initErr = fmt.Errorf("failed to open channel: %w", err)
			return
		}
		defer ch.Close()

		if err := DeclareTopology(ch); err != nil {
			_ = c.Close()
			initErr = err
			return
		}

		connMu.Lock()
		conn = c
		tracer = pkgmq.NewTracer(config.Cfg.ServiceName)
		connMu.Unlock()

		logger.Logger.Info("RabbitMQ initialized successfully",
			zap.String("exchange", NotificationExchange),
			zap.String("queue", NotificationQueue),
		)
	})

	return initErr
}

// DeclareTopology 声明交换机、队列与绑定，重复声明是幂等的
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", DeadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(NotificationDeadLetter, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", NotificationDeadLetter, err)
	}
	if err := ch.QueueBind(NotificationDeadLetter, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", NotificationDeadLetter, err)
	}

	if err := ch.ExchangeDeclare(NotificationExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", NotificationExchange, err)
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	}); err != nil {
		return fmt.Errorf("declare queue %s: %w", NotificationQueue, err)
	}
	if err := ch.QueueBind(NotificationQueue, NotificationBinding, NotificationExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", NotificationQueue, err)
	}
	return nil
}

// Connection 返回共享连接，未初始化时为 nil
func Connection() *amqp.Connection {
	connMu.RLock()
	defer connMu.RUnlock()
	return conn
}

func getTracer() *pkgmq.Tracer {
	connMu.RLock()
	defer connMu.RUnlock()
	if tracer == nil {
		return pkgmq.NewTracer(config.Cfg.ServiceName)
	}
	return tracer
}

func Close(ctx context.Context) error {
	closePublisher()

	connMu.Lock()
	defer connMu.Unlock()
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}
