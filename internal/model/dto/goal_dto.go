package dto

import "FitStreak/pkg/clock"

// ========== Goal 相关 DTO ==========

// CreateGoalRequest 创建目标请求
type CreateGoalRequest struct {
	StartDate   *clock.Date `json:"start_date"` // 为空表示今天（用户时区）
	EndDate     *clock.Date `json:"end_date"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Frequency   string      `json:"frequency"`
	DaysOfWeek  []int       `json:"days_of_week"`
}

// GoalData 目标数据
type GoalData struct {
	StartDate        clock.Date   `json:"start_date"`
	EndDate          *clock.Date  `json:"end_date,omitempty"`
	LastCompletedOn  *clock.Date  `json:"last_completed_on,omitempty"`
	TodayCheckIn     *CheckInData `json:"today_check_in,omitempty"`
	ID               string       `json:"id"`
	PublicID         string       `json:"public_id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Frequency        string       `json:"frequency"`
	Status           string       `json:"status"`
	DaysOfWeek       []int        `json:"days_of_week"`
	CurrentStreak    int          `json:"current_streak"`
	LongestStreak    int          `json:"longest_streak"`
	TotalCompletions int          `json:"total_completions"`
}

// GoalListQuery 目标列表查询参数
type GoalListQuery struct {
	Status string `query:"status"`
}

// StreakData 连续打卡汇总
type StreakData struct {
	LastCompletedOn  *clock.Date `json:"last_completed_on,omitempty"`
	Today            clock.Date  `json:"today"`
	GoalID           string      `json:"goal_id"`
	TodayStatus      string      `json:"today_status,omitempty"` // 今天无需打卡时为空
	CurrentStreak    int         `json:"current_streak"`
	LongestStreak    int         `json:"longest_streak"`
	TotalCompletions int         `json:"total_completions"`
	DueToday         bool        `json:"due_today"`
}

// ReconcileData 对账结果
type ReconcileData struct {
	Before    StreakData `json:"before"`
	After     StreakData `json:"after"`
	Corrected bool       `json:"corrected"`
}
