package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationEvent 通知事件
type NotificationEvent string

const (
	NotificationEventCheckInReminder  NotificationEvent = "checkin.reminder"
	NotificationEventCheckInCompleted NotificationEvent = "checkin.completed"
	NotificationEventCheckInMissed    NotificationEvent = "checkin.missed"
	NotificationEventStreakMilestone  NotificationEvent = "streak.milestone"
)

// NotificationChannel 通知渠道枚举
type NotificationChannel string

const (
	NotificationChannelSMS   NotificationChannel = "sms"
	NotificationChannelEmail NotificationChannel = "email"
)

// NotificationTaskStatus 通知任务状态枚举
type NotificationTaskStatus string

const (
	NotificationTaskStatusPending NotificationTaskStatus = "pending" // 待处理
	NotificationTaskStatusSuccess NotificationTaskStatus = "success" // 成功
	NotificationTaskStatusFailed  NotificationTaskStatus = "failed"  // 失败
	NotificationTaskStatusDropped NotificationTaskStatus = "dropped" // 用户无可用渠道
)

// NotificationTask 通知任务模型，message_id 保证同一消息只落一条
type NotificationTask struct {
	BaseModel
	TaskCode     int64                  `gorm:"uniqueIndex;not null" json:"task_code"`
	MessageID    string                 `gorm:"type:varchar(64);uniqueIndex;not null" json:"message_id"`
	UserID       int64                  `gorm:"not null;index:idx_notification_tasks_user" json:"user_id"`
	Event        NotificationEvent      `gorm:"type:varchar(32);not null" json:"event"`
	Channel      NotificationChannel    `gorm:"type:varchar(16);not null;default:''" json:"channel"`
	Payload      datatypes.JSONMap      `json:"payload"`
	Status       NotificationTaskStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_notification_tasks_status" json:"status"`
	RetryCount   int                    `gorm:"type:smallint;not null" json:"retry_count"`
	ErrorMessage string                 `gorm:"type:varchar(255);not null;default:''" json:"error_message,omitempty"`
	SentAt       *time.Time             `json:"sent_at,omitempty"`
}

// TableName 指定表名
func (NotificationTask) TableName() string {
	return "notification_tasks"
}
