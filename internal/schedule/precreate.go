package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"FitStreak/internal/model"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
)

// PrecreateResult Skipped 表示记录已存在
type PrecreateResult struct {
	Scanned           int
	Created           int
	Skipped           int
	NotDue            int
	Failed            int
	TimezoneFallbacks int
}

// Precreate 为所有 active 目标按用户时区生成今天的 pending 打卡，已存在的记录不覆盖
func (s *Scheduler) Precreate(ctx context.Context) (PrecreateResult, error) {
	var t *tally
	err := s.run(ctx, JobPrecreate, func(ctx context.Context) (*tally, error) {
		t = newTally()
		return t, s.precreate(ctx, t)
	})
	if t == nil {
		return PrecreateResult{}, err
	}
	return PrecreateResult{
		Scanned:           t.get(outcomeScanned),
		Created:           t.get(outcomeCreated),
		Skipped:           t.get(outcomeSkipped),
		NotDue:            t.get(outcomeNotDue),
		Failed:            t.get(outcomeFailed),
		TimezoneFallbacks: t.get(outcomeFallback),
	}, err
}

func (s *Scheduler) precreate(ctx context.Context, t *tally) error {
	goals := repository.NewGoalRepository(s.rows)
	checkIns := repository.NewCheckInStore(s.rows)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := goals.ListByStatus(ctx, model.GoalStatusActive, afterID, s.opts.BatchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		afterID = page[len(page)-1].ID
		t.add(outcomeScanned, len(page))

		zones, err := s.timezonesFor(ctx, ownerIDs(page))
		if err != nil {
			return err
		}

		now := s.clock.Now()
		s.each(ctx, len(page), func(ctx context.Context, i int) {
			goal := &page[i]
			t.add(s.precreateOne(ctx, t, checkIns, goal, zones[goal.UserID], now), 1)
		})

		if len(page) < s.opts.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) precreateOne(
	ctx context.Context,
	t *tally,
	checkIns *repository.CheckInStore,
	goal *model.Goal,
	tz string,
	now time.Time,
) string {
	if err := goal.Schedule().Validate(); err != nil {
		s.logger.Warn("Goal has invalid schedule",
			zap.Int64("goal_id", goal.ID),
			zap.Error(err),
		)
		return outcomeFailed
	}

	today := clock.Resolve(tz, now)
	if today.Fallback {
		t.add(outcomeFallback, 1)
	}
	if !goal.DueOn(today.Date, today.Weekday) {
		return outcomeNotDue
	}

	created, err := checkIns.CreateIfAbsent(ctx, goal.ID, goal.UserID, today.Date)
	if err != nil {
		s.logger.Error("Failed to pre-create check-in",
			zap.Int64("goal_id", goal.ID),
			zap.String("date", today.Date.String()),
			zap.Error(err),
		)
		return outcomeFailed
	}
	if !created {
		return outcomeSkipped
	}
	return outcomeCreated
}

func ownerIDs(goals []model.Goal) []int64 {
	ids := make([]int64, len(goals))
	for i := range goals {
		ids[i] = goals[i].UserID
	}
	return ids
}
