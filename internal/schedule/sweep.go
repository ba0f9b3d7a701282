package schedule

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
)

// errLostRace 用户抢先响应，记为 Skipped
var errLostRace = stderrors.New("check-in already responded")

// SweepResult NotElapsed 表示在用户时区下当天尚未结束
type SweepResult struct {
	Scanned           int
	Missed            int
	Skipped           int
	NotElapsed        int
	Failed            int
	TimezoneFallbacks int
}

// Sweep 将已过期的 pending 打卡标记为 missed，并在同一事务内执行连续计数惩罚
// 重复执行是安全的：已处理的记录不会再次进入扫描范围
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var t *tally
	err := s.run(ctx, JobSweep, func(ctx context.Context) (*tally, error) {
		t = newTally()
		return t, s.sweep(ctx, t)
	})
	if t == nil {
		return SweepResult{}, err
	}
	return SweepResult{
		Scanned:           t.get(outcomeScanned),
		Missed:            t.get(outcomeMissed),
		Skipped:           t.get(outcomeSkipped),
		NotElapsed:        t.get(outcomeNotElapsed),
		Failed:            t.get(outcomeFailed),
		TimezoneFallbacks: t.get(outcomeFallback),
	}, err
}

func (s *Scheduler) sweep(ctx context.Context, t *tally) error {
	checkIns := repository.NewCheckInStore(s.rows)

	// 早于 UTC+14 今天的记录才可能在某个时区已经过期
	bound := clock.LatestToday(s.clock.Now())

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := checkIns.ListPendingBefore(ctx, bound, afterID, s.opts.BatchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		afterID = page[len(page)-1].ID
		t.add(outcomeScanned, len(page))

		zones, err := s.timezonesFor(ctx, checkInOwners(page))
		if err != nil {
			return err
		}

		now := s.clock.Now()
		s.each(ctx, len(page), func(ctx context.Context, i int) {
			row := &page[i]
			today := clock.Resolve(zones[row.UserID], now)
			if today.Fallback {
				t.add(outcomeFallback, 1)
			}
			if !today.Date.After(row.Date) {
				t.add(outcomeNotElapsed, 1)
				return
			}
			t.add(s.sweepOne(ctx, row), 1)
		})

		if len(page) < s.opts.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) sweepOne(ctx context.Context, row *model.CheckIn) string {
	var goal *model.Goal
	err := s.rows.Transaction(ctx, func(tx repository.RowStore) error {
		applied, err := repository.NewCheckInStore(tx).UpdateStatus(ctx, row.ID, model.CheckInStatusMissed, nil)
		if err != nil {
			return err
		}
		if !applied {
			return errLostRace
		}

		goals := repository.NewGoalRepository(tx)
		if _, err := goals.ResetStreakIfStale(ctx, row.GoalID, row.Date); err != nil {
			return err
		}
		goal, err = goals.FindByID(ctx, row.GoalID)
		return err
	})

	switch {
	case stderrors.Is(err, errLostRace):
		return outcomeSkipped
	case err != nil:
		s.logger.Error("Failed to mark check-in missed",
			zap.Int64("check_in_id", row.ID),
			zap.Int64("goal_id", row.GoalID),
			zap.String("date", row.Date.String()),
			zap.Error(err),
		)
		return outcomeFailed
	}

	s.notifier.Notify(context.WithoutCancel(ctx), row.UserID, model.NotificationEventCheckInMissed, map[string]interface{}{
		"goal_id":        goal.ID,
		"goal_title":     goal.Title,
		"date":           row.Date.String(),
		"current_streak": goal.CurrentStreak,
	})
	return outcomeMissed
}

func checkInOwners(rows []model.CheckIn) []int64 {
	ids := make([]int64, len(rows))
	for i := range rows {
		ids[i] = rows[i].UserID
	}
	return ids
}

