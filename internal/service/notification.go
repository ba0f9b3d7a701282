package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/metrics"
	"FitStreak/pkg/snowflake"
	"FitStreak/utils"
)

// SMSSender 短信渠道，params 对应模板变量
type SMSSender interface {
	Send(ctx context.Context, phone string, event model.NotificationEvent, params map[string]string) error
}

// EmailSender 邮件渠道
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NotificationService worker 侧的通知投递
type NotificationService struct {
	rows  repository.RowStore
	clock clock.Clock
	sms   SMSSender
	email EmailSender
}

func NewNotificationService(deps Deps) *NotificationService {
	deps = deps.withDefaults()
	return &NotificationService{rows: deps.Rows, clock: deps.Clock, sms: deps.SMS, email: deps.Email}
}

// Deliver 落库通知任务并按用户偏好选择渠道发送
// 已成功或已丢弃的消息返回 SkipMessageError，发送失败返回错误由消费者决定是否重试
func (s *NotificationService) Deliver(ctx context.Context, msg model.NotificationMessage) error {
	tasks := repository.NewNotificationRepository(s.rows)

	task, err := s.ensureTask(ctx, tasks, msg)
	if err != nil {
		return err
	}
	if task.Status == model.NotificationTaskStatusSuccess || task.Status == model.NotificationTaskStatusDropped {
		return fmt.Errorf("notification %s already %s: %w", msg.MessageID, task.Status, errors.SkipMessageError)
	}

	user, err := repository.NewUserRepository(s.rows).FindByID(ctx, msg.UserID)
	if err != nil {
		if stderrors.Is(err, errors.UserNotFound) {
			return tasks.MarkResult(ctx, task.ID, "", model.NotificationTaskStatusDropped, "user not found", s.clock.Now())
		}
		return err
	}

	channel, ok := s.pickChannel(user, msg.Event)
	if !ok {
		logger.Logger.Info("No notification channel available, dropping",
			zap.String("message_id", msg.MessageID),
			zap.Int64("user_id", user.ID),
			zap.String("event", string(msg.Event)),
		)
		return tasks.MarkResult(ctx, task.ID, "", model.NotificationTaskStatusDropped, "no channel", s.clock.Now())
	}

	start := time.Now()
	sendErr := s.send(ctx, channel, user, msg)
	status := "success"
	if sendErr != nil {
		status = "failed"
	}
	metrics.RecordNotification(ctx, string(msg.Event), string(channel), status, time.Since(start).Seconds())
	if sendErr != nil {
		if err := tasks.MarkResult(ctx, task.ID, channel, model.NotificationTaskStatusFailed, sendErr.Error(), s.clock.Now()); err != nil {
			logger.Logger.Warn("Failed to record notification failure",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		}
		return fmt.Errorf("send %s notification %s: %w", channel, msg.MessageID, sendErr)
	}

	logger.Logger.Info("Notification delivered",
		zap.String("message_id", msg.MessageID),
		zap.Int64("user_id", user.ID),
		zap.String("event", string(msg.Event)),
		zap.String("channel", string(channel)),
	)
	return tasks.MarkResult(ctx, task.ID, channel, model.NotificationTaskStatusSuccess, "", s.clock.Now())
}

func (s *NotificationService) ensureTask(ctx context.Context, tasks *repository.NotificationRepository, msg model.NotificationMessage) (*model.NotificationTask, error) {
	code, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate task code: %w", err)
	}

	task := &model.NotificationTask{
		TaskCode:  code,
		MessageID: msg.MessageID,
		UserID:    msg.UserID,
		Event:     msg.Event,
		Payload:   datatypes.JSONMap(msg.Payload),
		Status:    model.NotificationTaskStatusPending,
	}
	created, err := tasks.CreateIfAbsent(ctx, task)
	if err != nil {
		return nil, err
	}
	if created {
		return task, nil
	}
	return tasks.FindByMessageID(ctx, msg.MessageID)
}

// pickChannel 提醒优先短信，其余事件只走邮件
func (s *NotificationService) pickChannel(user *model.User, event model.NotificationEvent) (model.NotificationChannel, bool) {
	hasPhone := user.PhoneCipher != nil && *user.PhoneCipher != ""
	hasEmail := user.Email != nil && *user.Email != ""

	if event == model.NotificationEventCheckInReminder && user.NotifySMS && hasPhone && s.sms != nil {
		return model.NotificationChannelSMS, true
	}
	if user.NotifyEmail && hasEmail && s.email != nil {
		return model.NotificationChannelEmail, true
	}
	return "", false
}

func (s *NotificationService) send(ctx context.Context, channel model.NotificationChannel, user *model.User, msg model.NotificationMessage) error {
	switch channel {
	case model.NotificationChannelSMS:
		phone, err := utils.DecryptPhone(*user.PhoneCipher)
		if err != nil {
			return fmt.Errorf("decrypt phone: %w", err)
		}
		return s.sms.Send(ctx, phone, msg.Event, smsParams(msg.Payload))
	case model.NotificationChannelEmail:
		subject, html := renderEmail(user, msg.Event, msg.Payload)
		return s.email.Send(ctx, *user.Email, subject, html)
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
}

func smsParams(payload map[string]interface{}) map[string]string {
	params := make(map[string]string, len(payload))
	for k, v := range payload {
		params[k] = fmt.Sprint(v)
	}
	return params
}

func renderEmail(user *model.User, event model.NotificationEvent, payload map[string]interface{}) (string, string) {
	// 昵称与目标标题来自用户输入，写入 HTML 前转义
	esc := func(v interface{}) string { return html.EscapeString(fmt.Sprint(v)) }

	name := esc(user.Nickname)
	if name == "" {
		name = "there"
	}
	title := esc(payload["goal_title"])

	switch event {
	case model.NotificationEventCheckInReminder:
		return "Don't break your streak",
			fmt.Sprintf("<p>Hi %s,</p><p>You haven't checked in to <b>%s</b> today.</p>", name, title)
	case model.NotificationEventCheckInCompleted:
		return "Nice work",
			fmt.Sprintf("<p>Hi %s,</p><p><b>%s</b> done. Current streak: %v.</p>", name, title, esc(payload["current_streak"]))
	case model.NotificationEventCheckInMissed:
		return "Missed a day",
			fmt.Sprintf("<p>Hi %s,</p><p>You missed <b>%s</b> on %v. Tomorrow is a fresh start.</p>", name, title, esc(payload["date"]))
	case model.NotificationEventStreakMilestone:
		return fmt.Sprintf("%v day streak", payload["streak"]),
			fmt.Sprintf("<p>Hi %s,</p><p>You reached a %v day streak on <b>%s</b>.</p>", name, esc(payload["streak"]), title)
	default:
		return "FitStreak", fmt.Sprintf("<p>Hi %s,</p>", name)
	}
}

