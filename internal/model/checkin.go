package model

import (
	"time"

	"gorm.io/datatypes"

	"FitStreak/pkg/clock"
)

// CheckInStatus 打卡状态枚举，pending 以外均为终态
type CheckInStatus string

const (
	CheckInStatusPending   CheckInStatus = "pending"   // 待响应
	CheckInStatusCompleted CheckInStatus = "completed" // 已完成
	CheckInStatusSkipped   CheckInStatus = "skipped"   // 主动跳过，不影响连续计数
	CheckInStatusRestDay   CheckInStatus = "rest_day"  // 休息日，不影响连续计数
	CheckInStatusMissed    CheckInStatus = "missed"    // 过期未响应，连续计数归零
)

var checkInTransitions = map[CheckInStatus][]CheckInStatus{
	CheckInStatusPending: {
		CheckInStatusCompleted,
		CheckInStatusSkipped,
		CheckInStatusRestDay,
		CheckInStatusMissed,
	},
}

func (s CheckInStatus) Valid() bool {
	switch s {
	case CheckInStatusPending, CheckInStatusCompleted, CheckInStatusSkipped,
		CheckInStatusRestDay, CheckInStatusMissed:
		return true
	}
	return false
}

func (s CheckInStatus) IsTerminal() bool {
	return s.Valid() && len(checkInTransitions[s]) == 0
}

func (s CheckInStatus) CanTransitionTo(next CheckInStatus) bool {
	for _, allowed := range checkInTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckInAction 用户可发起的动作
type CheckInAction string

const (
	CheckInActionComplete CheckInAction = "complete"
	CheckInActionSkip     CheckInAction = "skip"
	CheckInActionRestDay  CheckInAction = "rest-day"
)

// Target 动作对应的目标状态，missed 只能由清扫任务写入
func (a CheckInAction) Target() (CheckInStatus, bool) {
	switch a {
	case CheckInActionComplete:
		return CheckInStatusCompleted, true
	case CheckInActionSkip:
		return CheckInStatusSkipped, true
	case CheckInActionRestDay:
		return CheckInStatusRestDay, true
	default:
		return "", false
	}
}

// CheckIn 每个目标每个应打卡日至多一条
type CheckIn struct {
	BaseModel
	GoalID int64         `gorm:"not null;uniqueIndex:idx_check_ins_goal_date,priority:1" json:"goal_id"`
	UserID int64         `gorm:"not null;index:idx_check_ins_user_date,priority:1" json:"user_id"`
	Date   clock.Date    `gorm:"type:date;not null;uniqueIndex:idx_check_ins_goal_date,priority:2;index:idx_check_ins_user_date,priority:2;index:idx_check_ins_status_date,priority:2" json:"date"`
	Status CheckInStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_check_ins_status_date,priority:1" json:"status"`

	Mood        *int                        `gorm:"type:smallint" json:"mood,omitempty"`
	Note        string                      `gorm:"type:varchar(500);not null;default:''" json:"note,omitempty"`
	SkipReason  string                      `gorm:"type:varchar(255);not null;default:''" json:"skip_reason,omitempty"`
	MediaKeys   datatypes.JSONSlice[string] `json:"media_keys,omitempty"`
	AIResponse  string                      `gorm:"type:text;not null;default:''" json:"ai_response,omitempty"`
	RespondedAt *time.Time                  `json:"responded_at,omitempty"`
	RemindedAt  *time.Time                  `json:"reminded_at,omitempty"`
}

// TableName 指定表名
func (CheckIn) TableName() string {
	return "check_ins"
}
