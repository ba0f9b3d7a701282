package dto

// ========== User 相关 DTO ==========

// UserProfileData 用户资料数据
type UserProfileData struct {
	Email    *string         `json:"email,omitempty"`
	PublicID string          `json:"public_id"`
	Nickname string          `json:"nickname"`
	Status   string          `json:"status"`
	Phone    PhoneInfo       `json:"phone"`
	Settings UserSettingsDTO `json:"settings"`
}

// PhoneInfo 手机号信息
type PhoneInfo struct {
	NumberMasked string `json:"number_masked,omitempty"`
	Bound        bool   `json:"bound"`
}

// UserSettingsDTO 用户设置
type UserSettingsDTO struct {
	Timezone     string `json:"timezone"`
	ReminderHour int    `json:"reminder_hour"`
	NotifySMS    bool   `json:"notify_sms"`
	NotifyEmail  bool   `json:"notify_email"`
}

// UpdateUserSettingsRequest 更新用户设置请求，nil 表示不修改
type UpdateUserSettingsRequest struct {
	Nickname     *string `json:"nickname"`
	Timezone     *string `json:"timezone"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	ReminderHour *int    `json:"reminder_hour"`
	NotifySMS    *bool   `json:"notify_sms"`
	NotifyEmail  *bool   `json:"notify_email"`
}

// RefreshTokenRequest 刷新 token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}
