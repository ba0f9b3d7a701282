package dto

import (
	"time"

	"FitStreak/pkg/clock"
)

// ========== CheckIn 相关 DTO ==========

// CheckInData 打卡记录数据
type CheckInData struct {
	Date        clock.Date `json:"date"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	Mood        *int       `json:"mood,omitempty"`
	ID          string     `json:"id"`
	GoalID      string     `json:"goal_id"`
	Status      string     `json:"status"`
	Note        string     `json:"note,omitempty"`
	SkipReason  string     `json:"skip_reason,omitempty"`
	AIResponse  string     `json:"ai_response,omitempty"`
	MediaKeys   []string   `json:"media_keys,omitempty"`
}

// CheckInActionRequest 打卡动作请求，字段按动作取用
type CheckInActionRequest struct {
	Mood       *int     `json:"mood"`
	Note       string   `json:"note"`
	SkipReason string   `json:"skip_reason"`
	MediaKeys  []string `json:"media_keys"`
}

// CheckInActionResponse 打卡动作响应
type CheckInActionResponse struct {
	CheckIn       CheckInData `json:"check_in"`
	CurrentStreak int         `json:"current_streak"`
	LongestStreak int         `json:"longest_streak"`
}

// TodayCheckInsData 今日所有需打卡目标
type TodayCheckInsData struct {
	Date  clock.Date         `json:"date"`
	Items []TodayCheckInItem `json:"items"`
}

type TodayCheckInItem struct {
	CheckIn CheckInData `json:"check_in"`
	GoalID  string      `json:"goal_id"`
	Title   string      `json:"title"`
	Streak  int         `json:"current_streak"`
}

// CheckInHistoryQuery 打卡历史查询参数
type CheckInHistoryQuery struct {
	From   string `query:"from"`
	To     string `query:"to"`
	Status string `query:"status"`
	Cursor string `query:"cursor"`
	Limit  int    `query:"limit"`
}

// CheckInHistoryData 打卡历史，按日期倒序
type CheckInHistoryData struct {
	NextCursor string        `json:"next_cursor,omitempty"`
	Items      []CheckInData `json:"items"`
}

// MediaUploadRequest 申请上传地址
type MediaUploadRequest struct {
	ContentType string `json:"content_type"`
}

// MediaUploadData 预签名上传地址
type MediaUploadData struct {
	ExpiresAt time.Time `json:"expires_at"`
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
}
