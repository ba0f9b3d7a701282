package model

import (
	"time"

	"FitStreak/pkg/clock"
)

// GoalStatus 目标生命周期
type GoalStatus string

const (
	GoalStatusDraft     GoalStatus = "draft"
	GoalStatusUpcoming  GoalStatus = "upcoming"  // 未到开始日期
	GoalStatusActive    GoalStatus = "active"    // 唯一允许打卡的状态
	GoalStatusArchived  GoalStatus = "archived"  // 用户归档，只读
	GoalStatusCancelled GoalStatus = "cancelled" // 用户取消，只读
	GoalStatusCompleted GoalStatus = "completed" // 过了结束日期，只读
)

var goalTransitions = map[GoalStatus][]GoalStatus{
	GoalStatusDraft:    {GoalStatusUpcoming, GoalStatusActive, GoalStatusCancelled},
	GoalStatusUpcoming: {GoalStatusActive, GoalStatusCancelled},
	GoalStatusActive:   {GoalStatusArchived, GoalStatusCancelled, GoalStatusCompleted},
}

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalStatusDraft, GoalStatusUpcoming, GoalStatusActive,
		GoalStatusArchived, GoalStatusCancelled, GoalStatusCompleted:
		return true
	}
	return false
}

func (s GoalStatus) CanTransitionTo(next GoalStatus) bool {
	for _, allowed := range goalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Goal 打卡目标，连续打卡计数只通过 streak_version CAS 修改
type Goal struct {
	BaseModel
	PublicID    int64       `gorm:"uniqueIndex;not null" json:"public_id"`
	UserID      int64       `gorm:"not null;index:idx_goals_user_status" json:"user_id"`
	Title       string      `gorm:"type:varchar(100);not null" json:"title"`
	Description string      `gorm:"type:varchar(500);not null;default:''" json:"description"`
	Frequency   Frequency   `gorm:"type:varchar(16);not null" json:"frequency"`
	DaysOfWeek  Weekdays    `gorm:"type:smallint;not null" json:"days_of_week"`
	Status      GoalStatus  `gorm:"type:varchar(16);not null;index:idx_goals_user_status;index:idx_goals_status" json:"status"`
	StartDate   clock.Date  `gorm:"type:date;not null" json:"start_date"`
	EndDate     *clock.Date `gorm:"type:date" json:"end_date,omitempty"`

	CurrentStreak    int         `gorm:"not null" json:"current_streak"`
	LongestStreak    int         `gorm:"not null" json:"longest_streak"`
	TotalCompletions int         `gorm:"not null" json:"total_completions"`
	LastCompletedOn  *clock.Date `gorm:"type:date" json:"last_completed_on,omitempty"`
	StreakVersion    int64       `gorm:"not null" json:"-"`
}

// TableName 指定表名
func (Goal) TableName() string {
	return "goals"
}

func (g *Goal) Schedule() Schedule {
	return Schedule{Frequency: g.Frequency, Days: g.DaysOfWeek}
}

// AcceptsActions 只有 active 目标可以打卡
func (g *Goal) AcceptsActions() bool {
	return g.Status == GoalStatusActive
}

// DueOn 日期需要打卡：在起止日期内且符合频率
func (g *Goal) DueOn(date clock.Date, weekday time.Weekday) bool {
	if date.Before(g.StartDate) {
		return false
	}
	if g.EndDate != nil && date.After(*g.EndDate) {
		return false
	}
	return g.Schedule().IsDue(date, weekday)
}

// Streak 连续打卡计数快照
type Streak struct {
	Current         int
	Longest         int
	Total           int
	LastCompletedOn *clock.Date
}

func (g *Goal) Streak() Streak {
	return Streak{
		Current:         g.CurrentStreak,
		Longest:         g.LongestStreak,
		Total:           g.TotalCompletions,
		LastCompletedOn: g.LastCompletedOn,
	}
}
