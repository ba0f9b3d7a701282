package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

// streakRetries streak_version CAS 的最大尝试次数
const streakRetries = 3

// milestones 达到这些连续天数时发送里程碑通知
var milestones = map[int]bool{3: true, 7: true, 14: true, 30: true, 60: true, 100: true, 365: true}

// carriesStreak 只有上一个应打卡日为 completed 时才延续连续计数
// skipped 与 rest_day 不扣减连续计数，但也不延续
func carriesStreak(status model.CheckInStatus) bool {
	return status == model.CheckInStatusCompleted
}

// creditCompletion 在事务内为 date 的完成记一次连续计数，必须与 check-in CAS 处于同一事务
func creditCompletion(ctx context.Context, tx repository.RowStore, goalID int64, date clock.Date) (model.Streak, error) {
	goals := repository.NewGoalRepository(tx)
	checkIns := repository.NewCheckInStore(tx)

	for attempt := 0; attempt < streakRetries; attempt++ {
		goal, err := goals.FindByID(ctx, goalID)
		if err != nil {
			return model.Streak{}, err
		}

		carry, err := previousCarries(ctx, checkIns, goal, date)
		if err != nil {
			return model.Streak{}, err
		}

		next := nextStreak(goal.Streak(), date, carry)
		applied, err := goals.CompareAndSetStreak(ctx, goal.ID, goal.StreakVersion, next)
		if err != nil {
			return model.Streak{}, err
		}
		if applied {
			return next, nil
		}
	}

	return model.Streak{}, fmt.Errorf("credit goal %d on %s: %w", goalID, date, errors.StreakContention)
}

// previousCarries 单点查询上一个应打卡日的结果；首个应打卡日视为延续
func previousCarries(ctx context.Context, checkIns *repository.CheckInStore, goal *model.Goal, date clock.Date) (bool, error) {
	prev, ok := goal.Schedule().PreviousDueDate(date)
	if !ok || prev.Before(goal.StartDate) {
		return true, nil
	}

	row, err := checkIns.Find(ctx, goal.ID, prev)
	if stderrors.Is(err, errors.CheckInNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return carriesStreak(row.Status), nil
}

func nextStreak(cur model.Streak, date clock.Date, carry bool) model.Streak {
	next := cur
	if carry {
		next.Current = cur.Current + 1
	} else {
		next.Current = 1
	}
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	next.Total = cur.Total + 1

	completed := date
	if cur.LastCompletedOn == nil || cur.LastCompletedOn.Before(date) {
		next.LastCompletedOn = &completed
	}
	return next
}

// replayStreak 按日期正序重放完整历史，规则与在线计数一致，仅供对账使用
func replayStreak(goal *model.Goal, history []model.CheckIn) model.Streak {
	byDate := make(map[string]model.CheckInStatus, len(history))
	for _, row := range history {
		byDate[row.Date.String()] = row.Status
	}

	schedule := goal.Schedule()
	var s model.Streak
	for _, row := range history {
		switch row.Status {
		case model.CheckInStatusCompleted:
			carry := true
			if prev, ok := schedule.PreviousDueDate(row.Date); ok && !prev.Before(goal.StartDate) {
				carry = carriesStreak(byDate[prev.String()])
			}
			s = nextStreak(s, row.Date, carry)
		case model.CheckInStatusMissed:
			if s.LastCompletedOn == nil || s.LastCompletedOn.Before(row.Date) {
				s.Current = 0
			}
		}
	}
	return s
}

func sameStreak(a, b model.Streak) bool {
	if a.Current != b.Current || a.Longest != b.Longest || a.Total != b.Total {
		return false
	}
	if a.LastCompletedOn == nil || b.LastCompletedOn == nil {
		return a.LastCompletedOn == nil && b.LastCompletedOn == nil
	}
	return a.LastCompletedOn.Equal(*b.LastCompletedOn)
}
