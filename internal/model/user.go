package model

import "FitStreak/pkg/clock"

// UserStatus 用户状态枚举
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"   // 正常使用
	UserStatusDisabled UserStatus = "disabled" // 已停用，不再参与后台任务
)

// DefaultReminderHour 默认晚上 8 点提醒
const DefaultReminderHour = 20

// User 用户模型，这里只关心时区与通知偏好
type User struct {
	BaseModel
	PublicID    int64      `gorm:"uniqueIndex;not null" json:"public_id"`
	Nickname    string     `gorm:"type:varchar(64);not null;default:''" json:"nickname"`
	Email       *string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	PhoneCipher *string    `gorm:"type:varchar(128)" json:"-"` // 手机号密文，不对外暴露
	Status      UserStatus `gorm:"type:varchar(16);not null;default:'active';index:idx_users_status" json:"status"`

	// 自定义设置部分，bool 与 hour 不设数据库默认值，避免零值被 gorm 覆盖
	Timezone     string `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	NotifySMS    bool   `gorm:"not null" json:"notify_sms"`
	NotifyEmail  bool   `gorm:"not null" json:"notify_email"`
	ReminderHour int    `gorm:"type:smallint;not null" json:"reminder_hour"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// TimezoneOrDefault 空时区按 UTC 处理
func (u *User) TimezoneOrDefault() string {
	if u.Timezone == "" {
		return clock.DefaultTimezone
	}
	return u.Timezone
}
