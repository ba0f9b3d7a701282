package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
)

// ReminderResult NotYet 表示未到用户的提醒时间
type ReminderResult struct {
	Scanned  int
	Reminded int
	NotYet   int
	Skipped  int
	Failed   int
}

// Remind 对当天仍为 pending 的打卡，在用户本地时间到达 reminder_hour 后提醒一次
func (s *Scheduler) Remind(ctx context.Context) (ReminderResult, error) {
	var t *tally
	err := s.run(ctx, JobReminder, func(ctx context.Context) (*tally, error) {
		t = newTally()
		return t, s.remind(ctx, t)
	})
	if t == nil {
		return ReminderResult{}, err
	}
	return ReminderResult{
		Scanned:  t.get(outcomeScanned),
		Reminded: t.get(outcomeReminded),
		NotYet:   t.get(outcomeNotYet),
		Skipped:  t.get(outcomeSkipped),
		Failed:   t.get(outcomeFailed),
	}, err
}

func (s *Scheduler) remind(ctx context.Context, t *tally) error {
	checkIns := repository.NewCheckInStore(s.rows)
	users := repository.NewUserRepository(s.rows)

	// 所有时区的"今天"都落在这个区间内
	now := s.clock.Now()
	from, to := clock.EarliestToday(now), clock.LatestToday(now)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := checkIns.ListPendingUnreminded(ctx, from, to, afterID, s.opts.BatchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		afterID = page[len(page)-1].ID
		t.add(outcomeScanned, len(page))

		// 提醒需要 reminder_hour 与状态，直接读用户表
		owners, err := users.FindByIDs(ctx, unique(checkInOwners(page)))
		if err != nil {
			return err
		}

		now := s.clock.Now()
		s.each(ctx, len(page), func(ctx context.Context, i int) {
			row := &page[i]
			t.add(s.remindOne(ctx, checkIns, row, owners[row.UserID], now), 1)
		})

		if len(page) < s.opts.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) remindOne(
	ctx context.Context,
	checkIns *repository.CheckInStore,
	row *model.CheckIn,
	user *model.User,
	now time.Time,
) string {
	if user == nil || user.Status != model.UserStatusActive {
		return outcomeSkipped
	}

	today := clock.Resolve(user.TimezoneOrDefault(), now)
	if !row.Date.Equal(today.Date) {
		// 昨天的记录等待清扫，明天的记录等到明天
		return outcomeNotYet
	}
	if now.In(today.Location).Hour() < user.ReminderHour {
		return outcomeNotYet
	}

	goal, err := repository.NewGoalRepository(s.rows).FindByID(ctx, row.GoalID)
	if err != nil {
		s.logger.Error("Failed to load goal for reminder",
			zap.Int64("check_in_id", row.ID),
			zap.Error(err),
		)
		return outcomeFailed
	}
	if !goal.AcceptsActions() {
		return outcomeSkipped
	}

	applied, err := checkIns.MarkReminded(ctx, row.ID, now)
	if err != nil {
		s.logger.Error("Failed to mark check-in reminded",
			zap.Int64("check_in_id", row.ID),
			zap.Error(err),
		)
		return outcomeFailed
	}
	if !applied {
		return outcomeSkipped
	}

	s.notifier.Notify(context.WithoutCancel(ctx), user.ID, model.NotificationEventCheckInReminder, map[string]interface{}{
		"goal_id":        goal.ID,
		"goal_title":     goal.Title,
		"check_in_id":    row.ID,
		"date":           row.Date.String(),
		"current_streak": goal.CurrentStreak,
	})
	return outcomeReminded
}
